package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/evansenter/agent-event-bus/pkg/config"
	"github.com/evansenter/agent-event-bus/pkg/dispatch"
	"github.com/evansenter/agent-event-bus/pkg/eventlog"
	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/evansenter/agent-event-bus/pkg/mcpserver"
	"github.com/evansenter/agent-event-bus/pkg/metrics"
	"github.com/evansenter/agent-event-bus/pkg/notify"
	"github.com/evansenter/agent-event-bus/pkg/registry"
	"github.com/evansenter/agent-event-bus/pkg/storage"
	"github.com/evansenter/agent-event-bus/pkg/sweeper"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventbus",
	Short: "Agent event bus - session coordination and event routing for agents",
	Long: `A lightweight message broker for coordinating agent processes.

Agents register sessions, publish typed events onto named channels, read
back recent history, and receive push notifications over signed webhooks.
The bus runs as an MCP tool server over stdio, backed by a single embedded
database file.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agent-event-bus version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	serveCmd.Flags().String("config", "", "Path to YAML config file")
	serveCmd.Flags().String("env-file", "", "Path to .env file to load before reading configuration")
	notifyCmd.Flags().Bool("sound", false, "Play the default notification sound")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(notifyCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event bus as an MCP stdio server",
	Long: `Start the event bus: open the database, launch the webhook dispatcher
and the stale-session sweeper, and serve MCP tools on stdin/stdout until
the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")

		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				log.Logger.Warn().Err(err).Str("path", envFile).Msg("Could not load env file")
			}
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStoreWithLimit(cfg.DBPath, cfg.MaxEvents)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()

		metrics.Register()

		dispatcher := dispatch.NewDispatcherWithConfig(store, dispatch.Config{
			Timeout:     cfg.WebhookTimeout,
			MaxAttempts: cfg.WebhookMaxAttempts,
		})
		dispatcher.Start()
		defer dispatcher.Stop()

		events := eventlog.New(store, dispatcher)
		reg := registry.New(store, events)

		sw := sweeper.New(store, events, cfg.SweepInterval, cfg.SessionTimeout)
		sw.Start()
		defer sw.Stop()

		if cfg.MetricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics listener started")
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					log.Logger.Error().Err(err).Msg("Metrics listener failed")
				}
			}()
		}

		// Stop background loops cleanly on SIGINT/SIGTERM; stdio EOF also
		// ends the server.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		done := make(chan error, 1)

		srv := mcpserver.NewServer(reg, events, store, Version)
		go func() { done <- srv.ServeStdio() }()

		select {
		case sig := <-sigCh:
			log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			return nil
		case err := <-done:
			return err
		}
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <title> <message>",
	Short: "Send a desktop notification",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sound, _ := cmd.Flags().GetBool("sound")
		if !notify.Send(args[0], args[1], sound) {
			return fmt.Errorf("failed to send notification")
		}
		return nil
	},
}
