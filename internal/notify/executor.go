package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Executor runs discovered agent executables.
type Executor struct {
	logger *slog.Logger
	agents map[string]string
}

// Params is everything passed to an agent through its environment.
type Params struct {
	SuiteID   string
	SuiteName string
	JobID     string
	Event     string
	Status    string
	Emails    []string
	StartTS   time.Time
	EndTS     time.Time

	// ConfigJSON is the agent's `with` block, marshalled.
	ConfigJSON string
	ExtraEnv   map[string]string

	TimeoutSec int
}

// Result is the outcome of one agent run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// JSONOutput is the first JSON object found on stdout, if any.
	JSONOutput map[string]any
}

// NewExecutor creates an Executor with no agents.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		logger: logger,
		agents: make(map[string]string),
	}
}

// Discover loads agents from the given paths.
func (e *Executor) Discover(paths []string) error {
	agents, err := DiscoverAgents(paths)
	if err != nil {
		return fmt.Errorf("failed to discover agents: %w", err)
	}

	e.agents = agents
	e.logger.Info("discovered agents",
		slog.Int("count", len(agents)),
		slog.Any("agents", AgentNames(agents)))
	return nil
}

// Agents returns the discovered agents map.
func (e *Executor) Agents() map[string]string {
	return e.agents
}

// Execute runs an agent. A non-zero exit is reported in the Result; an
// error means the agent could not be run or timed out.
func (e *Executor) Execute(ctx context.Context, agentName string, params Params) (*Result, error) {
	agentPath, err := FindAgent(e.agents, agentName)
	if err != nil {
		return nil, err
	}

	execCtx := ctx
	if params.TimeoutSec > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(params.TimeoutSec)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, agentPath)
	cmd.Env = buildEnvironment(params)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("executing agent",
		slog.String("agent", agentName),
		slog.String("path", agentPath),
		slog.String("job_id", params.JobID),
		slog.String("event", params.Event))

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || execCtx.Err() != nil {
			return nil, fmt.Errorf("agent %s: %w", agentName, errors.Join(runErr, execCtx.Err()))
		}
		exitCode = exitErr.ExitCode()
	}

	result := &Result{
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Duration:   duration,
		JSONOutput: parseJSONOutput(stdout.String()),
	}

	level := slog.LevelInfo
	if exitCode != 0 {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "agent execution completed",
		slog.String("agent", agentName),
		slog.String("job_id", params.JobID),
		slog.String("event", params.Event),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration))

	if result.Stderr != "" {
		e.logger.Debug("agent stderr",
			slog.String("agent", agentName),
			slog.String("stderr", result.Stderr))
	}

	return result, nil
}

func buildEnvironment(params Params) []string {
	env := os.Environ()

	vars := map[string]string{
		"SUITE_ID":      params.SuiteID,
		"SUITE_NAME":    params.SuiteName,
		"JOB_ID":        params.JobID,
		"EVENT":         params.Event,
		"STATUS":        params.Status,
		"NOTIFY_EMAILS": strings.Join(params.Emails, ","),
		"START_TS":      formatTimestamp(params.StartTS),
		"END_TS":        formatTimestamp(params.EndTS),
		"CONFIG_JSON":   params.ConfigJSON,
	}
	for k, v := range params.ExtraEnv {
		vars[k] = v
	}

	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

// parseJSONOutput returns stdout as a JSON object, or the first line that
// parses as one.
func parseJSONOutput(stdout string) map[string]any {
	if stdout == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err == nil {
		return result
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// AgentNames returns the sorted agent names of a discovered agents map.
func AgentNames(agents map[string]string) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
