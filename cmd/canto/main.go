package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/louisfellows/canto/internal/adapters/clock"
	"github.com/louisfellows/canto/internal/adapters/config"
	"github.com/louisfellows/canto/internal/adapters/idgen"
	"github.com/louisfellows/canto/internal/adapters/mqtt"
	"github.com/louisfellows/canto/internal/adapters/output"
	"github.com/louisfellows/canto/internal/core"
	"github.com/louisfellows/canto/pkg/canto"
)

type app struct {
	service core.Service
	printer output.Printer
	quiet   bool
	json    bool
	timeout time.Duration
}

func main() {
	root := &cobra.Command{
		Use:   "canto",
		Short: "Canto voice media CLI",
	}

	var (
		broker    string
		topicBase string
		identity  string
		node      string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", canto.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().StringVarP(&node, "node", "n", "", "default node selector")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == canto.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if node == "" {
			node = cfg.Node
		}
		if broker == "" {
			return errors.New("broker is required (set --broker or config)")
		}
		if cfg.Aliases == nil {
			cfg.Aliases = map[string]string{}
		}

		clientID := fmt.Sprintf("canto-%d", time.Now().UnixNano())
		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  clientID,
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return err
		}

		coreCfg := core.Config{
			Broker:    broker,
			Identity:  identity,
			TopicBase: topicBase,
			Aliases:   cfg.Aliases,
			Node:      node,
		}

		resolver := core.Resolver{Presence: mqttClient, Config: coreCfg}
		service := core.Service{
			Broker:   mqttClient,
			Resolver: resolver,
			Clock:    clock.System{},
			IDGen:    idgen.Generator{},
			Config:   coreCfg,
		}

		var printer output.Printer
		if jsonOut {
			printer = output.JSONPrinter{}
		} else {
			printer = output.HumanPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: service,
			printer: printer,
			quiet:   quiet,
			json:    jsonOut,
			timeout: timeout,
		}))
		return nil
	}

	root.AddCommand(lsCommand())
	root.AddCommand(resolveCommand())
	root.AddCommand(playCommand())
	root.AddCommand(addCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(resumeCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(duckCommand())
	root.AddCommand(restoreCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(announceCommand())
	root.AddCommand(rebuildCommand())

	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "canto-unknown"
}
