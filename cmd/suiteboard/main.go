package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/config"
	"github.com/caevv/suiteboard/internal/logging"
)

var (
	// Version information (set via ldflags at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global logger
	logger *slog.Logger
)

func main() {
	logger = logging.NewWithWriter(os.Stderr, "info")
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "suiteboard",
	Short: "A console for registering and triggering test suites",
	Long: `Suiteboard keeps a registry of test suites, triggers simulated runs of
them on demand or on a schedule, and records every execution.

Features:
  - Test suite registry with validation
  - Manual, batch and filtered triggering
  - Interval and cron schedules swept in the background
  - Execution history with filtering and statistics
  - HTTP API, terminal dashboard and Prometheus metrics
  - Notification agents run on suite events`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (default $SUITEBOARD_CONFIG or "+config.DefaultPath+")")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// A missing .env is normal.
		_ = godotenv.Load()

		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			logger = logging.NewWithWriter(os.Stderr, "debug")
			slog.SetDefault(logger)
			logger.Debug("debug logging enabled")
		}
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(suiteCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(agentsCmd)
}

// configPath resolves the config file from the flag, then the environment.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if p := os.Getenv("SUITEBOARD_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath
}

// loadConfig loads the config file, falling back to defaults when it
// doesn't exist. An explicitly named file must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath(cmd)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if cmd.Flags().Changed("config") {
			return nil, path, fmt.Errorf("configuration file not found: %s", path)
		}
		logger.Debug("no configuration file, using defaults", "path", path)
		cfg, err := config.Default()
		return cfg, path, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}

// setupSignalHandler creates a context that cancels on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()

		sig = <-sigChan
		logger.Warn("received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}
