package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the schedule sweeper headless (no API)",
	Long: `Start the schedule sweeper without the HTTP API.

Due schedules trigger their matching suites until the process is
interrupted by SIGINT or SIGTERM.

Example:
  suiteboard run --config ./suiteboard.yaml`,
	RunE: runHeadless,
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := setupSignalHandler()

	a, err := newApp(ctx, cfg, appOptions{debug: debugEnabled(cmd), withScheduler: true})
	if err != nil {
		return err
	}
	logger = a.logger

	if a.sched == nil {
		logger.Warn("scheduler is disabled in the configuration; nothing will be triggered")
	}
	logger.Info("starting suiteboard in run mode",
		"config", path,
		"schedules", len(a.reg.Schedules()))

	<-ctx.Done()

	logger.Info("shutting down gracefully...")
	if err := a.Close(); err != nil {
		logger.Error("error during shutdown", "error", err)
		return err
	}

	logger.Info("suiteboard stopped")
	return nil
}
