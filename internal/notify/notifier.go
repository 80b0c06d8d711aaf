// Package notify runs agent executables when a suite's notification
// conditions match a job lifecycle event.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/caevv/suiteboard/internal/config"
	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/simulator"
)

// Notification events. Terminal events use the status name.
const (
	EventTrigger = "on-trigger"
	EventAll     = "all"
)

// Matches reports whether a suite's notification conditions select event.
// error and cancelled have no condition of their own and only match "all".
func Matches(conditions []string, event string) bool {
	if slices.Contains(conditions, EventAll) {
		return true
	}
	switch event {
	case EventTrigger, string(domain.StatusSuccess), string(domain.StatusFailure):
		return slices.Contains(conditions, event)
	}
	return false
}

// Notifier is a simulator.Observer that runs the configured agents for
// matching events. Agents run in the background; failures are logged and
// never touch job state.
type Notifier struct {
	executor   *Executor
	agents     []config.Agent
	timeoutSec int
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ simulator.Observer = (*Notifier)(nil)

// New creates a Notifier. With no agents every matching event is only logged.
func New(executor *Executor, agents []config.Agent, timeoutSec int, logger *slog.Logger) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		executor:   executor,
		agents:     agents,
		timeoutSec: timeoutSec,
		logger:     logger.With(slog.String("component", "notify")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnTrigger handles the on-trigger event.
func (n *Notifier) OnTrigger(ev simulator.Event) {
	n.dispatch(EventTrigger, ev)
}

// OnFinish handles the terminal status event.
func (n *Notifier) OnFinish(ev simulator.Event) {
	n.dispatch(string(ev.Job.Status), ev)
}

func (n *Notifier) dispatch(event string, ev simulator.Event) {
	if !Matches(ev.Suite.NotificationConditions, event) {
		return
	}

	n.logger.Info("notification",
		slog.String("event", event),
		slog.String("suite_id", ev.Suite.ID),
		slog.String("suite_name", ev.Suite.Name),
		slog.String("job_id", ev.Job.ID),
		slog.Any("emails", ev.Suite.NotificationEmails))

	if len(n.agents) == 0 || n.executor == nil {
		return
	}

	params := Params{
		SuiteID:    ev.Suite.ID,
		SuiteName:  ev.Suite.Name,
		JobID:      ev.Job.ID,
		Event:      event,
		Status:     string(ev.Job.Status),
		Emails:     ev.Suite.NotificationEmails,
		StartTS:    ev.Job.StartTime,
		TimeoutSec: n.timeoutSec,
	}
	if ev.Job.EndTime != nil {
		params.EndTS = *ev.Job.EndTime
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.logger.Debug("notifier closed, dropping agent run",
			slog.String("event", event),
			slog.String("job_id", ev.Job.ID))
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()
	go func() {
		defer n.wg.Done()
		n.runAgents(params)
	}()
}

func (n *Notifier) runAgents(params Params) {
	for i, agent := range n.agents {
		configJSON, err := json.Marshal(agent.With)
		if err != nil {
			n.logger.Error("failed to marshal agent config",
				slog.String("agent", agent.Agent),
				slog.String("error", err.Error()))
			continue
		}
		p := params
		p.ConfigJSON = string(configJSON)
		p.ExtraEnv = agent.Env

		result, err := n.executor.Execute(n.ctx, agent.Agent, p)
		if err != nil {
			n.logger.Error("notification agent failed",
				slog.String("agent", agent.Agent),
				slog.Int("agent_index", i),
				slog.String("event", params.Event),
				slog.String("job_id", params.JobID),
				slog.String("error", err.Error()))
			continue
		}
		if result.ExitCode != 0 {
			n.logger.Warn("notification agent returned non-zero exit code",
				slog.String("agent", agent.Agent),
				slog.Int("agent_index", i),
				slog.Int("exit_code", result.ExitCode),
				slog.String("job_id", params.JobID),
				slog.String("stderr", result.Stderr))
			continue
		}
		if result.JSONOutput != nil {
			n.logger.Debug("agent output",
				slog.String("agent", agent.Agent),
				slog.Any("output", result.JSONOutput))
		}
	}
}

// Wait blocks until every dispatched agent run has returned.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close kills running agents and waits for them to exit. Events that arrive
// afterwards are only logged.
func (n *Notifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.cancel()
	n.wg.Wait()
	return nil
}
