package simulator

import "time"

// Config controls simulated job timing.
type Config struct {
	// StepBase and StepJitter bound the delay before each step:
	// StepBase + rand*StepJitter.
	StepBase   time.Duration
	StepJitter time.Duration

	// CleanupDelay is how long a finished job stays in the running map.
	CleanupDelay time.Duration
	// CancelCleanupDelay is the same for cancelled jobs.
	CancelCleanupDelay time.Duration

	// EnforceTimeout forces jobs still running after the suite's
	// timeout_minutes into the error status.
	EnforceTimeout bool

	// Rand returns a value in [0,1) used for step jitter. Defaults to
	// math/rand/v2.
	Rand func() float64
}

// DefaultConfig returns the standard simulation timings.
func DefaultConfig() Config {
	return Config{
		StepBase:           2 * time.Second,
		StepJitter:         3 * time.Second,
		CleanupDelay:       10 * time.Second,
		CancelCleanupDelay: 2 * time.Second,
		EnforceTimeout:     true,
	}
}
