package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run suiteboard with a terminal dashboard",
	Long: `Start an interactive terminal dashboard.

The dashboard lists registered suites with their latest status, running
jobs with their newest log line, recent executions and statistics. The
schedule sweeper runs in the background.

Navigation:
  ↑/↓ or k/j  - Navigate suite list
  enter       - View suite details (configuration, logs, history)
  esc         - Go back to suite list
  g/G         - Jump to top/bottom
  t           - Trigger the selected suite
  a           - Trigger all suites
  c           - Cancel the selected suite's running job
  r           - Refresh data
  q           - Quit

Example:
  suiteboard tui --config ./suiteboard.yaml`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Logs would draw over the dashboard unless sent elsewhere.
	logOutput := cfg.Logging.Output
	if logOutput == "" || logOutput == "stderr" || logOutput == "stdout" {
		logOutput = "discard"
	}

	ctx := setupSignalHandler()

	a, err := newApp(ctx, cfg, appOptions{logOutput: logOutput, debug: debugEnabled(cmd), withScheduler: true})
	if err != nil {
		return err
	}
	logger = a.logger

	model := tui.New(a.reg, a.sim, logger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}
	if runErr != nil {
		logger.Error("TUI error", "error", runErr)
		runErr = fmt.Errorf("TUI error: %w", runErr)
	}

	if err := a.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
