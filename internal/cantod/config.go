// Package cantod holds the daemon's configuration, logging, and module
// supervision.
package cantod

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for cantod.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Mopidy   MopidyConfig   `toml:"mopidy"`
	Matching MatchingConfig `toml:"matching"`
	Session  SessionConfig  `toml:"session"`
	Modules  ModulesConfig  `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// MopidyConfig configures the media server connection.
type MopidyConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutMS       int64  `toml:"timeout_ms"`
	SearchTimeoutMS int64  `toml:"search_timeout_ms"`
	CloudScheme     string `toml:"cloud_scheme"`
	PlaylistScheme  string `toml:"playlist_scheme"`
	VolumeLow       int    `toml:"volume_low"`
	VolumeHigh      int    `toml:"volume_high"`
}

// Timeout returns the control-call timeout.
func (c MopidyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SearchTimeout returns the search-call timeout.
func (c MopidyConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMS) * time.Millisecond
}

// MatchingConfig configures phrase matching thresholds.
type MatchingConfig struct {
	Mode             string `toml:"mode"`
	CatalogThreshold int    `toml:"catalog_threshold"`
	SearchThreshold  int    `toml:"search_threshold"`
	Trigger          string `toml:"trigger"`
}

// SessionConfig configures the playback session.
type SessionConfig struct {
	RestoreDelayMS int64 `toml:"restore_delay_ms"`
}

// RestoreDelay returns the duck restore delay.
func (c SessionConfig) RestoreDelay() time.Duration {
	return time.Duration(c.RestoreDelayMS) * time.Millisecond
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	VoiceBridge  VoiceBridgeConfig  `toml:"voicebridge"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// VoiceBridgeConfig configures the voice bridge module.
type VoiceBridgeConfig struct {
	Enabled bool   `toml:"enabled"`
	NodeID  string `toml:"node_id"`
	Name    string `toml:"name"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "canto", "cantod.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "canto", "cantod.toml"), nil
}
