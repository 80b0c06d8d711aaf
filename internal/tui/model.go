package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/registry"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/views"
)

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

const (
	recentLimit = 8
	detailLimit = 5
)

// Model holds the state for the TUI.
type Model struct {
	reg    *registry.Registry
	runner simulator.Runner
	logger *slog.Logger

	viewMode      ViewMode
	suites        []SuiteState
	running       []domain.RunningJob
	recent        []domain.Execution
	detailHistory []domain.Execution
	stats         views.Statistics
	selected      int
	width         int
	height        int
	lastUpdate    time.Time
	quitting      bool
	message       string
	errorMessage  string
}

// SuiteState is one row of the suite list.
type SuiteState struct {
	Suite   domain.TestSuite
	Job     *domain.RunningJob // newest running job, if any
	LastRun *domain.Execution
}

// New creates a new TUI model.
func New(reg *registry.Registry, runner simulator.Runner, logger *slog.Logger) Model {
	m := Model{
		reg:    reg,
		runner: runner,
		logger: logger,
	}
	m.refreshData()
	return m
}

// Init initializes the model (required by Bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// tickMsg is sent on a regular interval to refresh the UI.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshData reloads snapshots from the registry.
func (m *Model) refreshData() {
	suites := m.reg.Suites()
	executions := m.reg.Executions()
	m.running = m.reg.RunningJobs()
	m.stats = views.Stats(executions, m.running)

	m.suites = make([]SuiteState, len(suites))
	for i, s := range suites {
		st := SuiteState{Suite: s}
		// Running jobs are ordered oldest first; keep the newest.
		for j := range m.running {
			if m.running[j].SuiteID == s.ID {
				job := m.running[j]
				st.Job = &job
			}
		}
		// Executions are newest first.
		for j := range executions {
			if executions[j].SuiteID == s.ID {
				e := executions[j]
				st.LastRun = &e
				break
			}
		}
		m.suites[i] = st
	}

	m.recent = executions[:min(recentLimit, len(executions))]

	if m.selected >= len(m.suites) {
		m.selected = max(0, len(m.suites)-1)
	}
	if m.viewMode == ViewModeDetail {
		m.loadDetail()
	}
	m.lastUpdate = time.Now()
}

// loadDetail collects the selected suite's recent executions.
func (m *Model) loadDetail() {
	m.detailHistory = nil
	st, ok := m.current()
	if !ok {
		return
	}
	for _, e := range m.reg.Executions() {
		if e.SuiteID == st.Suite.ID {
			m.detailHistory = append(m.detailHistory, e)
			if len(m.detailHistory) == detailLimit {
				break
			}
		}
	}
}

func (m Model) current() (SuiteState, bool) {
	if m.selected < 0 || m.selected >= len(m.suites) {
		return SuiteState{}, false
	}
	return m.suites[m.selected], true
}

// triggerSelected starts a manual run of the selected suite.
func (m *Model) triggerSelected() {
	st, ok := m.current()
	if !ok {
		return
	}
	h, err := m.runner.Trigger(context.Background(), st.Suite, simulator.ManualTrigger)
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.logger.Info("suite triggered from tui", "suite_id", st.Suite.ID, "job_id", h.JobID)
	m.message = "Triggered " + st.Suite.Name
}

// triggerAll starts a manual run of every suite.
func (m *Model) triggerAll() {
	suites := m.reg.Suites()
	if len(suites) == 0 {
		m.errorMessage = "No test suites to trigger"
		return
	}
	handles, err := m.runner.TriggerBatch(context.Background(), suites, simulator.ManualTrigger)
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.message = fmt.Sprintf("Triggered %d suite(s)", len(handles))
}

// cancelSelected cancels the selected suite's newest running job.
func (m *Model) cancelSelected() {
	st, ok := m.current()
	if !ok || st.Job == nil {
		m.errorMessage = "No running job for the selected suite"
		return
	}
	if err := m.runner.Cancel(st.Job.ID); err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.message = "Cancelled " + st.Suite.Name
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}
