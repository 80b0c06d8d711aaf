package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/caevv/suiteboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the schedule sweeper",
	Long: `Start the suiteboard HTTP API.

This command loads the configuration file, opens the store, starts the
schedule sweeper and serves the REST API and Prometheus metrics until
interrupted by SIGINT or SIGTERM. Running jobs are marked as errored on
shutdown.

Example:
  suiteboard serve --config ./suiteboard.yaml --addr :8080`,
	RunE: runServer,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "HTTP server address (host:port), overrides server.addr")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx := setupSignalHandler()

	a, err := newApp(ctx, cfg, appOptions{debug: debugEnabled(cmd), withScheduler: true})
	if err != nil {
		return err
	}
	logger = a.logger

	logger.Info("starting suiteboard in serve mode",
		"config", path,
		"addr", cfg.Server.Addr,
		"suites", len(a.reg.Suites()),
		"schedules", len(a.reg.Schedules()),
		"scheduler", a.sched != nil)

	opts := []server.Option{server.WithMetrics(a.metrics)}
	if a.sched != nil {
		opts = append(opts, server.WithSweeper(a.sched))
	}
	srv := server.New(cfg.Server.Addr, a.reg, a.sim, logger, opts...)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	err = g.Wait()

	logger.Info("shutting down gracefully...")
	if closeErr := a.Close(); closeErr != nil {
		logger.Error("error during shutdown", "error", closeErr)
		if err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return err
	}

	logger.Info("suiteboard stopped")
	return nil
}
