package domain

import "time"

// RunningJob is the transient, in-flight view of a triggered execution.
// It is never persisted.
type RunningJob struct {
	ID          string          `json:"id"`
	ExecutionID string          `json:"execution_id"`
	SuiteID     string          `json:"suite_id"`
	SuiteName   string          `json:"suite_name"`
	Product     string          `json:"product"`
	Environment string          `json:"environment"`
	Agent       string          `json:"agent"`
	Status      ExecutionStatus `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	Logs        []string        `json:"logs"`
}

// Clone returns a deep copy.
func (j RunningJob) Clone() RunningJob {
	j.EndTime = cloneTime(j.EndTime)
	j.Logs = cloneStrings(j.Logs)
	return j
}

// RunningJobPatch is a partial update of a running job. AppendLogs are
// added after the existing log lines.
type RunningJobPatch struct {
	Status     *ExecutionStatus
	EndTime    *time.Time
	AppendLogs []string
}

// Apply merges the patch into j and reports whether it was applied. Once j
// is terminal every patch is refused, so late updates cannot resurrect it.
func (p RunningJobPatch) Apply(j *RunningJob) bool {
	if j.Status.IsTerminal() {
		return false
	}
	if p.Status != nil {
		if !j.Status.CanTransition(*p.Status) {
			return false
		}
		j.Status = *p.Status
	}
	if p.EndTime != nil {
		j.EndTime = cloneTime(p.EndTime)
	}
	if len(p.AppendLogs) > 0 {
		j.Logs = append(j.Logs, p.AppendLogs...)
	}
	return true
}
