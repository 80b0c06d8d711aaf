package config

// Config represents the top-level configuration structure for suiteboard.
type Config struct {
	Defaults      Defaults      `yaml:"defaults"`
	Server        Server        `yaml:"server"`
	Store         Store         `yaml:"store"`
	Logging       Logging       `yaml:"logging"`
	Simulator     Simulator     `yaml:"simulator"`
	Scheduler     Scheduler     `yaml:"scheduler"`
	Notifications Notifications `yaml:"notifications"`
	Security      Security      `yaml:"security"`
	Tracing       Tracing       `yaml:"tracing"`
}

// Defaults holds values applied across components.
type Defaults struct {
	Timezone string `yaml:"timezone"` // IANA name used when a schedule has none
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store configuration for suite, execution and schedule persistence.
type Store struct {
	Driver string `yaml:"driver"` // "bbolt", "sqlite", "json" or "memory"
	Path   string `yaml:"path"`   // file path for the store
}

// Logging selects the slog handler.
type Logging struct {
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`
	Output string `yaml:"output"` // "stderr", "stdout", "discard" or a file path
}

// Simulator controls simulated job timing. Durations are strings such as "2s".
type Simulator struct {
	StepBase           string   `yaml:"step_base"`
	StepJitter         string   `yaml:"step_jitter"`
	CleanupDelay       string   `yaml:"cleanup_delay"`
	CancelCleanupDelay string   `yaml:"cancel_cleanup_delay"`
	EnforceTimeout     *bool    `yaml:"enforce_timeout"`
	SuccessRate        *float64 `yaml:"success_rate"`
}

// Scheduler configures the schedule sweeper.
type Scheduler struct {
	Enabled       *bool  `yaml:"enabled"`
	SweepInterval string `yaml:"sweep_interval"` // "30s", "every 1 minute" or a cron expression
}

// Notifications configures the agents run on suite notification events.
type Notifications struct {
	Agents          []Agent  `yaml:"agents"`
	AgentPaths      []string `yaml:"agent_paths"` // extra directories searched for agents
	AgentTimeoutSec int      `yaml:"agent_timeout_sec"`
}

// Security configuration for agent restrictions.
type Security struct {
	AllowedAgents []string `yaml:"allowed_agents"` // optional: whitelist of allowed agents
}

// Tracing configures the OpenTelemetry tracer provider.
type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Agent is an executable run when a notification event matches.
type Agent struct {
	Agent string            `yaml:"agent"`         // agent name (executable name)
	With  map[string]any    `yaml:"with"`          // configuration passed to the agent
	Env   map[string]string `yaml:"env,omitempty"` // extra environment variables
}

// SchedulerEnabled reports whether the sweeper should run.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}
