package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate suiteboard configuration file",
	Long: `Validate the syntax and semantics of a suiteboard configuration file.

This command loads and validates the configuration file without starting
anything. It checks for:
  - Valid YAML syntax
  - A known store driver
  - A valid time zone and log format
  - Valid simulator durations and success rate
  - A valid sweep interval
  - Notification agents permitted by security.allowed_agents

Example:
  suiteboard validate --config ./suiteboard.yaml`,
	RunE: validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	logger.Info("validating configuration", "path", path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Error("configuration file not found", "path", path)
		return fmt.Errorf("configuration file not found: %s", path)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("configuration is valid",
		"path", path,
		"store_driver", cfg.Store.Driver,
		"timezone", cfg.Defaults.Timezone,
		"agents", len(cfg.Notifications.Agents))

	for i, agent := range cfg.Notifications.Agents {
		logger.Debug(fmt.Sprintf("agent %d", i+1),
			"agent", agent.Agent,
			"config_keys", len(agent.With))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n✓ Configuration is valid: %s\n", path)
	fmt.Fprintf(out, "  Store:     %s (%s)\n", cfg.Store.Driver, cfg.Store.Path)
	fmt.Fprintf(out, "  Address:   %s\n", cfg.Server.Addr)
	fmt.Fprintf(out, "  Timezone:  %s\n", cfg.Defaults.Timezone)
	fmt.Fprintf(out, "  Scheduler: %v (%s)\n", cfg.SchedulerEnabled(), cfg.Scheduler.SweepInterval)
	fmt.Fprintf(out, "  Agents:    %d\n", len(cfg.Notifications.Agents))

	return nil
}
