package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/config"
	"github.com/caevv/suiteboard/internal/logging"
	"github.com/caevv/suiteboard/internal/metrics"
	"github.com/caevv/suiteboard/internal/notify"
	"github.com/caevv/suiteboard/internal/registry"
	"github.com/caevv/suiteboard/internal/scheduler"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/store"
	"github.com/caevv/suiteboard/internal/tracing"
)

// appOptions selects which parts of the application are started.
type appOptions struct {
	// logOutput overrides logging.output when set.
	logOutput string
	debug     bool
	// withScheduler starts the schedule sweeper if the config enables it.
	withScheduler bool
}

// app holds every long-lived component of a suiteboard process.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer

	store    store.Store
	reg      *registry.Registry
	metrics  *metrics.Recorder
	notifier *notify.Notifier
	sim      *simulator.Simulator
	sched    *scheduler.Scheduler

	shutdownTracing tracing.ShutdownFunc
}

// newApp builds the component graph from cfg. The caller must Close it.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	logOpts := logging.Options{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
	}
	if opts.logOutput != "" {
		logOpts.Output = opts.logOutput
	}
	if opts.debug {
		logOpts.Level = "debug"
	}
	lg, logCloser, err := logging.Open(logOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(lg)

	a := &app{cfg: cfg, logger: lg, logCloser: logCloser}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.shutdownTracing, err = tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a.store, err = store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	lg.Info("store initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	a.reg = registry.Open(a.store, registry.WithLogger(logging.Component(lg, "registry")))
	for _, e := range a.reg.LoadErrors() {
		lg.Warn("registry collection reset", "error", e)
	}

	executor := notify.NewExecutor(logging.Component(lg, "notify"))
	paths := append(append([]string{}, cfg.Notifications.AgentPaths...), notify.DefaultAgentPaths()...)
	if err := executor.Discover(paths); err != nil {
		lg.Warn("agent discovery failed", "error", err)
	}
	a.notifier = notify.New(executor, cfg.Notifications.Agents, cfg.Notifications.AgentTimeoutSec, logging.Component(lg, "notify"))
	a.metrics = metrics.New()

	simCfg, err := config.SimulatorConfig(cfg.Simulator)
	if err != nil {
		return nil, err
	}
	successRate := simulator.DefaultSuccessRate
	if cfg.Simulator.SuccessRate != nil {
		successRate = *cfg.Simulator.SuccessRate
	}
	a.sim = simulator.New(a.reg, simCfg,
		simulator.WithLogger(logging.Component(lg, "simulator")),
		simulator.WithDecider(simulator.RandomDecider{SuccessRate: successRate}),
		simulator.WithObserver(a.metrics),
		simulator.WithObserver(a.notifier),
	)

	if opts.withScheduler && cfg.SchedulerEnabled() {
		a.sched, err = scheduler.New(ctx, a.reg, a.sim, cfg.Scheduler.SweepInterval, logging.Component(lg, "scheduler"))
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := a.sched.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	return a, nil
}

// Close stops components in reverse start order and reports every failure.
func (a *app) Close() error {
	var result *multierror.Error

	if a.sched != nil {
		if err := a.sched.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("scheduler: %w", err))
		}
	}
	if a.sim != nil {
		a.sim.Close()
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("notifier: %w", err))
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(context.Background()); err != nil {
			result = multierror.Append(result, fmt.Errorf("tracing: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("store: %w", err))
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("log output: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// debugEnabled reads the persistent --debug flag.
func debugEnabled(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}
