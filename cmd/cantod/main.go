package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/adapters/clock"
	"github.com/louisfellows/canto/internal/adapters/mqttserver"
	"github.com/louisfellows/canto/internal/cantod"
	"github.com/louisfellows/canto/internal/catalog"
	embeddedmqtt "github.com/louisfellows/canto/internal/modules/embedded_mqtt"
	"github.com/louisfellows/canto/internal/modules/voicebridge"
	"github.com/louisfellows/canto/internal/mopidy"
	"github.com/louisfellows/canto/internal/phrase"
	"github.com/louisfellows/canto/internal/search"
	"github.com/louisfellows/canto/internal/session"
	"github.com/louisfellows/canto/pkg/canto"
)

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		mopidyURL   string
		logLevel    string
		logFormat   string
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := cantod.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&mopidyURL, "mopidy-url", "", "mopidy base URL override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := cantod.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, broker, identity, topicBase, mopidyURL, logLevel, logFormat)

	if printConfig {
		fmt.Fprintf(os.Stdout,
			"broker=%s identity=%s topic_base=%s mopidy=%s mode=%s log_level=%s log_format=%s\n",
			cfg.Server.Broker,
			cfg.Server.Identity,
			cfg.Server.TopicBase,
			cfg.Mopidy.BaseURL,
			cfg.Matching.Mode,
			cfg.Server.LogLevel,
			cfg.Server.LogFormat,
		)
		return
	}
	if dryRun {
		return
	}

	logger := cantod.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	if cfg.Server.Broker == "" {
		logger.Error("broker is required")
		os.Exit(1)
	}
	logger.Info("cantod starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("mopidy", cfg.Mopidy.BaseURL),
		zap.String("mode", cfg.Matching.Mode),
	)

	client, err := mqttserver.NewClient(mqttserver.Options{
		BrokerURL: cfg.Server.Broker,
		ClientID:  fmt.Sprintf("cantod-%d", time.Now().UnixNano()),
		Username:  cfg.Server.Auth.User,
		Password:  cfg.Server.Auth.Pass,
		TLSCA:     cfg.Server.TLS.CA,
		TLSCert:   cfg.Server.TLS.Cert,
		TLSKey:    cfg.Server.TLS.Key,
		Timeout:   2 * time.Second,
		Logger:    logger.With(zap.String("module", "mqtt")),
	})
	if err != nil {
		logger.Error("mqtt connection failed", zap.Error(err))
		os.Exit(1)
	}
	defer client.Disconnect()

	modules, err := buildModules(cfg, client, logger, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := cantod.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *cantod.Config, broker, identity, topicBase, mopidyURL, logLevel, logFormat string) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if identity != "" {
		cfg.Server.Identity = identity
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if mopidyURL != "" {
		cfg.Mopidy.BaseURL = mopidyURL
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = canto.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func buildModules(cfg cantod.Config, client *mqttserver.Client, logger *zap.Logger, skipEmbedded bool) ([]cantod.ModuleRunner, error) {
	modules := []cantod.ModuleRunner{}

	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
			Listen:         cfg.Modules.EmbeddedMQTT.Listen,
			AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
			Username:       cfg.Modules.EmbeddedMQTT.Username,
			Password:       cfg.Modules.EmbeddedMQTT.Password,
			TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
			TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
			TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, cantod.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
	}

	if cfg.Modules.VoiceBridge.Enabled {
		mod, err := buildVoiceBridge(cfg, client, logger)
		if err != nil {
			return nil, err
		}
		modules = append(modules, cantod.ModuleRunner{Name: "voicebridge", Run: mod.Run})
	}

	return modules, nil
}

func buildVoiceBridge(cfg cantod.Config, client *mqttserver.Client, logger *zap.Logger) (*voicebridge.Module, error) {
	log := logger.With(zap.String("module", "voicebridge"))

	media, err := mopidy.NewClient(log, mopidy.Config{
		BaseURL:       cfg.Mopidy.BaseURL,
		Timeout:       cfg.Mopidy.Timeout(),
		SearchTimeout: cfg.Mopidy.SearchTimeout(),
		CloudScheme:   cfg.Mopidy.CloudScheme,
		VolumeLow:     cfg.Mopidy.VolumeLow,
		VolumeHigh:    cfg.Mopidy.VolumeHigh,
	})
	if err != nil {
		return nil, err
	}

	matcher, err := phrase.NewMatcher(log, phrase.Config{
		Mode:      phrase.Mode(cfg.Matching.Mode),
		Threshold: cfg.Matching.CatalogThreshold,
		Trigger:   cfg.Matching.Trigger,
	})
	if err != nil {
		return nil, err
	}

	builder := catalog.NewBuilder(log, media, cfg.Mopidy.CloudScheme, cfg.Mopidy.PlaylistScheme)
	resolver := search.NewResolver(log, media, cfg.Matching.SearchThreshold)

	var opts []session.Option
	if cfg.Session.RestoreDelayMS > 0 {
		opts = append(opts, session.WithRestoreDelay(cfg.Session.RestoreDelay()))
	}
	player := session.New(log, media, clock.System{}, opts...)

	return voicebridge.NewModule(log, client, voicebridge.Config{
		NodeID:    cfg.Modules.VoiceBridge.NodeID,
		TopicBase: cfg.Server.TopicBase,
		Name:      cfg.Modules.VoiceBridge.Name,
	}, matcher, builder, resolver, player, media)
}

func embeddedBrokerURL(cfg cantod.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func startEmbeddedBroker(ctx context.Context, cfg cantod.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	})
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
