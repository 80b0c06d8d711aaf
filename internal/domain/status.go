// Package domain defines the records managed by suiteboard: test suites,
// executions, schedules and running jobs, together with their validation
// and partial-update rules.
package domain

// ExecutionStatus is the lifecycle state of an execution or running job.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSuccess   ExecutionStatus = "success"
	StatusFailure   ExecutionStatus = "failure"
	StatusError     ExecutionStatus = "error"
	StatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning:
		return true
	}
	return s.IsTerminal()
}

// CanTransition reports whether moving from s to next goes forward along
// pending -> running -> terminal. Re-applying the current status is allowed.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next != StatusPending
	case StatusRunning:
		return next.IsTerminal()
	}
	return false
}

// Enumerated option sets accepted by the validators.
var (
	Agents                 = []string{"harness-delegator", "temporal-agent", "default-agent"}
	Products               = []string{"MDM", "CAI", "TASKFLOW", "ANALYTICS", "PLATFORM"}
	CloudProviders         = []string{"AWS", "AZURE", "GCP", "ORACLE"}
	Environments           = []string{"PROD", "STAGING", "PREVIEW", "DEV"}
	PodNames               = []string{"usw1", "usw3", "usw5", "use2", "use4", "use6", "apse1"}
	TestSuiteTypes         = []string{"health-check", "functional", "full-test"}
	NotificationConditions = []string{"success", "failure", "on-trigger", "all"}
)

// Notification condition values.
const (
	NotifyOnSuccess = "success"
	NotifyOnFailure = "failure"
	NotifyOnTrigger = "on-trigger"
	NotifyAll       = "all"
)
