package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/pool"
	"mercator-hq/ganymede/pkg/server"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/store/retention"
	"mercator-hq/ganymede/pkg/telemetry/logging"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
	"mercator-hq/ganymede/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede gateway server",
	Long: `Start the Ganymede gateway server with the specified configuration.

The server listens on the configured address and serves the OpenAI
chat-completion API, drawing one pooled upstream credential per request.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8080

  # Validate config without starting the server
  ganymede run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Ganymede v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)

	st, err := store.Open(store.Options{
		Path:        cfg.Database.Path,
		AdminToken:  cfg.Database.AdminToken,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	fmt.Printf("✓ Credential store opened (%s)\n", cfg.Database.Path)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	scheduler := retention.NewScheduler(retention.NewSweeper(st, collector), cfg.Database.ReclaimSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reclamation scheduler: %w", err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		fmt.Printf("✓ Reclamation scheduled (next run %s)\n", next.UTC().Format("2006-01-02 15:04 MST"))
	}

	runtime := config.NewRuntime(cfg.Gateway)
	go func() {
		watcher := config.NewWatcher(cfgFile, runtime, logger)
		if err := watcher.Watch(ctx); err != nil {
			logger.Warn("config watcher exited", "error", err)
		}
	}()

	gw := gateway.New(gateway.Options{
		Store:        st,
		Pool:         pool.New(st, collector),
		Upstream:     upstream.NewClient(cfg.Upstream),
		Runtime:      runtime,
		Metrics:      collector,
		LogRetention: cfg.Database.LogRetention,
		Version:      Version,
	})

	srv := server.New(server.Options{
		Config:  cfg.Server,
		Gateway: gw,
		Metrics: collector,
		Logger:  logger,
	})

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Blocks until a signal, context cancellation, or a listen error.
	if err := srv.Start(ctx); err != nil {
		return err
	}

	fmt.Println("✓ Server stopped")
	return nil
}
