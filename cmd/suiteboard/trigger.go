package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/registry"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/views"
)

const pollInterval = 250 * time.Millisecond

var triggerCmd = &cobra.Command{
	Use:   "trigger [suite-id...]",
	Short: "Trigger suites and follow them to completion",
	Long: `Trigger one or more suites in the foreground.

Suites are chosen by ID, by filter flags or with --all. Log lines are
streamed as the jobs progress. The command exits non-zero when any run
does not succeed. Interrupting it cancels the running jobs.

Examples:
  suiteboard trigger 3f6c2a9e-...
  suiteboard trigger --product MDM --environment PROD
  suiteboard trigger --all`,
	RunE: runTrigger,
}

func init() {
	f := triggerCmd.Flags()
	f.Bool("all", false, "Trigger every registered suite")
	f.StringSlice("product", nil, "Trigger suites with any of these products")
	f.StringSlice("environment", nil, "Trigger suites with any of these environments")
	f.String("type", "", "Trigger suites of this type")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := setupSignalHandler()

	a, err := newApp(ctx, cfg, appOptions{logOutput: "discard", debug: debugEnabled(cmd)})
	if err != nil {
		return err
	}

	runErr := triggerAndFollow(ctx, cmd, a, args)

	if err := a.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// selectSuites resolves the suites named by args and filter flags.
func selectSuites(cmd *cobra.Command, reg *registry.Registry, args []string) ([]domain.TestSuite, error) {
	f := cmd.Flags()
	all, _ := f.GetBool("all")
	var filter views.SuiteFilter
	filter.Products, _ = f.GetStringSlice("product")
	filter.Environments, _ = f.GetStringSlice("environment")
	filter.Type, _ = f.GetString("type")

	switch {
	case len(args) > 0:
		suites := make([]domain.TestSuite, 0, len(args))
		for _, id := range args {
			s, ok := reg.Suite(id)
			if !ok {
				return nil, fmt.Errorf("suite '%s' not found", id)
			}
			suites = append(suites, s)
		}
		return suites, nil
	case all || !filter.IsEmpty():
		return views.FilterSuites(reg.Suites(), filter), nil
	}
	return nil, errors.New("name suite IDs, pass filter flags or use --all")
}

func triggerAndFollow(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	suites, err := selectSuites(cmd, a.reg, args)
	if err != nil {
		return err
	}
	if len(suites) == 0 {
		return errors.New("No test suites to trigger")
	}

	handles, err := a.sim.TriggerBatch(ctx, suites, simulator.ManualTrigger)
	if err != nil {
		return fmt.Errorf("failed to trigger: %w", err)
	}

	out := cmd.OutOrStdout()
	names := make(map[string]string, len(suites))
	for i, h := range handles {
		names[h.JobID] = suites[i].Name
		fmt.Fprintf(out, "→ %s triggered (job %s)\n", suites[i].Name, h.JobID)
	}

	results := follow(ctx, out, a, handles, names)
	if ctx.Err() != nil {
		for _, h := range handles {
			_ = a.sim.Cancel(h.JobID)
		}
		return ctx.Err()
	}

	failed := 0
	for _, h := range handles {
		status := results[h.JobID]
		fmt.Fprintf(out, "%s %s: %s\n", statusMark(status), names[h.JobID], status)
		if status != domain.StatusSuccess {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d suite(s) did not succeed", failed, len(handles))
	}
	return nil
}

// follow polls the registry until every execution is terminal, printing
// each job's new log lines as they appear.
func follow(ctx context.Context, out io.Writer, a *app, handles []simulator.Handle, names map[string]string) map[string]domain.ExecutionStatus {
	printed := make(map[string]int, len(handles))
	results := make(map[string]domain.ExecutionStatus, len(handles))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for _, h := range handles {
			if _, done := results[h.JobID]; done {
				continue
			}
			// The job log is final by the time the execution is terminal.
			e, ok := a.reg.Execution(h.ExecutionID)
			if job, found := a.reg.RunningJob(h.JobID); found {
				for _, line := range job.Logs[min(printed[h.JobID], len(job.Logs)):] {
					fmt.Fprintf(out, "  [%s] %s\n", names[h.JobID], line)
				}
				printed[h.JobID] = len(job.Logs)
			}
			if ok && e.Status.IsTerminal() {
				results[h.JobID] = e.Status
			}
		}
		if len(results) == len(handles) {
			return results
		}

		select {
		case <-ctx.Done():
			return results
		case <-ticker.C:
		}
	}
}

func statusMark(s domain.ExecutionStatus) string {
	if s == domain.StatusSuccess {
		return "✓"
	}
	return "✗"
}
