package simulator

import (
	"math/rand/v2"

	"github.com/caevv/suiteboard/internal/domain"
)

// DefaultSuccessRate is the probability that a simulated run succeeds.
const DefaultSuccessRate = 0.7

// Decider picks the terminal status of a finished run.
type Decider interface {
	Decide() domain.ExecutionStatus
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func() domain.ExecutionStatus

func (f DeciderFunc) Decide() domain.ExecutionStatus { return f() }

// Fixed always returns status.
func Fixed(status domain.ExecutionStatus) Decider {
	return DeciderFunc(func() domain.ExecutionStatus { return status })
}

// RandomDecider returns success with probability SuccessRate and failure
// otherwise.
type RandomDecider struct {
	SuccessRate float64
	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

func (d RandomDecider) Decide() domain.ExecutionStatus {
	r := d.Rand
	if r == nil {
		r = rand.Float64
	}
	if r() < d.SuccessRate {
		return domain.StatusSuccess
	}
	return domain.StatusFailure
}
