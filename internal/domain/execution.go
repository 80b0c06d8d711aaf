package domain

import (
	"fmt"
	"time"
)

// Execution is the historical record of one triggered run. Suite attributes
// are denormalized so the record survives suite edits and deletion.
type Execution struct {
	ID            string          `json:"id"`
	SuiteID       string          `json:"suite_id"`
	SuiteName     string          `json:"suite_name"`
	Product       string          `json:"product"`
	Environment   string          `json:"environment"`
	Agent         string          `json:"agent"`
	TestSuiteType string          `json:"test_suite_type"`
	TriggeredBy   string          `json:"triggered_by"`
	Status        ExecutionStatus `json:"status"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       *time.Time      `json:"end_time,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Duration returns the elapsed run time, or zero while still running.
func (e Execution) Duration() time.Duration {
	if e.EndTime == nil || e.StartTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Clone returns a copy that does not share the EndTime pointer.
func (e Execution) Clone() Execution {
	e.EndTime = cloneTime(e.EndTime)
	return e
}

// ExecutionPatch is a partial update of an execution.
type ExecutionPatch struct {
	Status    *ExecutionStatus `json:"status,omitempty"`
	StartTime *time.Time       `json:"start_time,omitempty"`
	EndTime   *time.Time       `json:"end_time,omitempty"`
}

// Apply merges the patch into e. A status change that does not move forward
// returns ErrInvalidTransition and leaves e unchanged.
func (p ExecutionPatch) Apply(e *Execution) error {
	if p.Status != nil && !e.Status.CanTransition(*p.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, *p.Status)
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = cloneTime(p.EndTime)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
