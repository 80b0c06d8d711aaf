package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caevv/suiteboard/internal/scheduler"
	"github.com/caevv/suiteboard/internal/simulator"
)

const (
	DefaultPath          = "suiteboard.yaml"
	DefaultAddr          = ":8080"
	DefaultStorePath     = "./.suiteboard.db"
	DefaultServiceName   = "suiteboard"
	defaultAgentTimeout  = 10
	defaultSweepInterval = scheduler.DefaultSweepInterval
)

var validDrivers = map[string]bool{
	"bbolt":  true,
	"sqlite": true,
	"json":   true,
	"memory": true,
}

// LoadConfig loads and validates a suiteboard configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Defaults.Timezone == "" {
		cfg.Defaults.Timezone = "UTC"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "bbolt"
	}
	if cfg.Store.Path == "" && cfg.Store.Driver != "memory" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	def := simulator.DefaultConfig()
	sim := &cfg.Simulator
	if sim.StepBase == "" {
		sim.StepBase = def.StepBase.String()
	}
	if sim.StepJitter == "" {
		sim.StepJitter = def.StepJitter.String()
	}
	if sim.CleanupDelay == "" {
		sim.CleanupDelay = def.CleanupDelay.String()
	}
	if sim.CancelCleanupDelay == "" {
		sim.CancelCleanupDelay = def.CancelCleanupDelay.String()
	}
	if sim.EnforceTimeout == nil {
		enforce := def.EnforceTimeout
		sim.EnforceTimeout = &enforce
	}
	if sim.SuccessRate == nil {
		rate := simulator.DefaultSuccessRate
		sim.SuccessRate = &rate
	}

	if cfg.Scheduler.Enabled == nil {
		enabled := true
		cfg.Scheduler.Enabled = &enabled
	}
	if cfg.Scheduler.SweepInterval == "" {
		cfg.Scheduler.SweepInterval = defaultSweepInterval
	}

	if cfg.Notifications.AgentTimeoutSec == 0 {
		cfg.Notifications.AgentTimeoutSec = defaultAgentTimeout
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("invalid store driver: %s (must be 'bbolt', 'sqlite', 'json' or 'memory')", cfg.Store.Driver)
	}
	if cfg.Store.Driver != "memory" && cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required for driver %s", cfg.Store.Driver)
	}

	if _, err := time.LoadLocation(cfg.Defaults.Timezone); err != nil {
		return fmt.Errorf("invalid defaults.timezone %q: %w", cfg.Defaults.Timezone, err)
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s (must be 'json' or 'text')", cfg.Logging.Format)
	}

	if _, err := SimulatorConfig(cfg.Simulator); err != nil {
		return err
	}
	if r := cfg.Simulator.SuccessRate; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("simulator.success_rate must be between 0 and 1, got %v", *r)
	}

	if _, err := scheduler.ParseTick(cfg.Scheduler.SweepInterval); err != nil {
		return fmt.Errorf("invalid scheduler.sweep_interval: %w", err)
	}

	if cfg.Notifications.AgentTimeoutSec < 0 {
		return fmt.Errorf("notifications.agent_timeout_sec must be non-negative")
	}
	for i, agent := range cfg.Notifications.Agents {
		if agent.Agent == "" {
			return fmt.Errorf("notification agent at index %d is missing a name", i)
		}
	}
	if len(cfg.Security.AllowedAgents) > 0 {
		if err := validateAgents(cfg.Notifications.Agents, cfg.Security.AllowedAgents); err != nil {
			return err
		}
	}

	return nil
}

// SimulatorConfig converts the simulator section into simulator timings.
// Unset fields keep their simulator defaults.
func SimulatorConfig(s Simulator) (simulator.Config, error) {
	out := simulator.DefaultConfig()

	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"step_base", s.StepBase, &out.StepBase},
		{"step_jitter", s.StepJitter, &out.StepJitter},
		{"cleanup_delay", s.CleanupDelay, &out.CleanupDelay},
		{"cancel_cleanup_delay", s.CancelCleanupDelay, &out.CancelCleanupDelay},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return out, fmt.Errorf("invalid simulator.%s: %w", f.name, err)
		}
		if d < 0 {
			return out, fmt.Errorf("simulator.%s must be non-negative", f.name)
		}
		*f.dst = d
	}

	if s.EnforceTimeout != nil {
		out.EnforceTimeout = *s.EnforceTimeout
	}
	return out, nil
}

// validateAgents checks that all notification agents are in the allowed list.
func validateAgents(agents []Agent, allowedAgents []string) error {
	allowed := make(map[string]bool)
	for _, agent := range allowedAgents {
		allowed[agent] = true
	}

	for _, agent := range agents {
		if !allowed[agent.Agent] {
			return fmt.Errorf("notification agent '%s' is not in the allowed agents list", agent.Agent)
		}
	}
	return nil
}
