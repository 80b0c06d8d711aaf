package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suiteboard.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantError string
		validate  func(*testing.T, *Config)
	}{
		{
			name: "valid full config",
			yaml: `
defaults:
  timezone: "Europe/Lisbon"

server:
  addr: "127.0.0.1:9090"

store:
  driver: "sqlite"
  path: "./state.db"

logging:
  format: "text"
  level: "debug"
  output: "stdout"

simulator:
  step_base: "100ms"
  step_jitter: "0s"
  cleanup_delay: "1s"
  cancel_cleanup_delay: "500ms"
  enforce_timeout: false
  success_rate: 1

scheduler:
  enabled: false
  sweep_interval: "every 5 minutes"

notifications:
  agent_timeout_sec: 3
  agent_paths: ["./hooks"]
  agents:
    - agent: "notify.sh"
      with:
        channel: "#qa"
`,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Defaults.Timezone != "Europe/Lisbon" {
					t.Errorf("expected timezone Europe/Lisbon, got %s", cfg.Defaults.Timezone)
				}
				if cfg.Server.Addr != "127.0.0.1:9090" {
					t.Errorf("expected addr 127.0.0.1:9090, got %s", cfg.Server.Addr)
				}
				if cfg.Store.Driver != "sqlite" {
					t.Errorf("expected driver sqlite, got %s", cfg.Store.Driver)
				}
				if cfg.SchedulerEnabled() {
					t.Error("expected scheduler to be disabled")
				}
				if *cfg.Simulator.SuccessRate != 1 {
					t.Errorf("expected success rate 1, got %v", *cfg.Simulator.SuccessRate)
				}
				if len(cfg.Notifications.Agents) != 1 || cfg.Notifications.Agents[0].With["channel"] != "#qa" {
					t.Errorf("unexpected agents: %+v", cfg.Notifications.Agents)
				}
				sim, err := SimulatorConfig(cfg.Simulator)
				if err != nil {
					t.Fatalf("SimulatorConfig: %v", err)
				}
				if sim.StepBase != 100*time.Millisecond || sim.StepJitter != 0 {
					t.Errorf("unexpected step timings: %v %v", sim.StepBase, sim.StepJitter)
				}
				if sim.EnforceTimeout {
					t.Error("expected enforce_timeout false")
				}
			},
		},
		{
			name: "empty config gets defaults",
			yaml: `{}`,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Store.Driver != "bbolt" || cfg.Store.Path != DefaultStorePath {
					t.Errorf("unexpected store defaults: %+v", cfg.Store)
				}
				if !cfg.SchedulerEnabled() {
					t.Error("expected scheduler enabled by default")
				}
				if cfg.Scheduler.SweepInterval != "30s" {
					t.Errorf("expected sweep interval 30s, got %s", cfg.Scheduler.SweepInterval)
				}
			},
		},
		{
			name:      "invalid store driver",
			yaml:      "store:\n  driver: \"postgres\"\n",
			wantError: "invalid store driver",
		},
		{
			name:      "invalid duration",
			yaml:      "simulator:\n  step_base: \"two seconds\"\n",
			wantError: "simulator.step_base",
		},
		{
			name:      "negative duration",
			yaml:      "simulator:\n  cleanup_delay: \"-1s\"\n",
			wantError: "simulator.cleanup_delay",
		},
		{
			name:      "success rate out of range",
			yaml:      "simulator:\n  success_rate: 1.5\n",
			wantError: "success_rate",
		},
		{
			name:      "invalid sweep interval",
			yaml:      "scheduler:\n  sweep_interval: \"whenever\"\n",
			wantError: "sweep_interval",
		},
		{
			name:      "invalid timezone",
			yaml:      "defaults:\n  timezone: \"Mars/Olympus\"\n",
			wantError: "timezone",
		},
		{
			name:      "invalid log format",
			yaml:      "logging:\n  format: \"xml\"\n",
			wantError: "logging.format",
		},
		{
			name:      "agent missing a name",
			yaml:      "notifications:\n  agents:\n    - with: {a: 1}\n",
			wantError: "missing a name",
		},
		{
			name: "agent outside allow list",
			yaml: `
security:
  allowed_agents: ["notify.sh"]
notifications:
  agents:
    - agent: "webhook.js"
`,
			wantError: "not in the allowed agents list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.yaml))
			if tt.wantError != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantError)
				}
				if !strings.Contains(err.Error(), tt.wantError) {
					t.Fatalf("expected error containing %q, got %v", tt.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "store:\n  driver: [unclosed\n"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Store: Store{Driver: "memory"}}
	applyDefaults(cfg)

	if cfg.Defaults.Timezone != "UTC" {
		t.Errorf("expected default timezone UTC, got %s", cfg.Defaults.Timezone)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("expected default addr %s, got %s", DefaultAddr, cfg.Server.Addr)
	}
	if cfg.Store.Path != "" {
		t.Errorf("expected memory driver to keep an empty path, got %s", cfg.Store.Path)
	}
	if cfg.Notifications.AgentTimeoutSec != 10 {
		t.Errorf("expected default agent timeout 10, got %d", cfg.Notifications.AgentTimeoutSec)
	}
	if cfg.Simulator.StepBase != "2s" || cfg.Simulator.CleanupDelay != "10s" {
		t.Errorf("unexpected simulator defaults: %+v", cfg.Simulator)
	}
	if cfg.Simulator.EnforceTimeout == nil || !*cfg.Simulator.EnforceTimeout {
		t.Error("expected enforce_timeout to default to true")
	}
	if cfg.Simulator.SuccessRate == nil || *cfg.Simulator.SuccessRate != 0.7 {
		t.Error("expected success_rate to default to 0.7")
	}
	if cfg.Tracing.ServiceName != "suiteboard" {
		t.Errorf("expected service name suiteboard, got %s", cfg.Tracing.ServiceName)
	}
}

func TestValidateAgents(t *testing.T) {
	allowed := []string{"notify.sh", "webhook.js"}

	tests := []struct {
		name      string
		agents    []Agent
		wantError bool
	}{
		{"all agents allowed", []Agent{{Agent: "notify.sh"}, {Agent: "webhook.js"}}, false},
		{"blocked agent", []Agent{{Agent: "notify.sh"}, {Agent: "blocked.sh"}}, true},
		{"no agents", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAgents(tt.agents, allowed)
			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
