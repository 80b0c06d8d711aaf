// Package views derives dashboard data from registry snapshots: statistics,
// filters, filter options and pagination. Every function is pure.
package views

import (
	"math"

	"github.com/caevv/suiteboard/internal/domain"
)

// Statistics summarizes the execution history.
type Statistics struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	SuccessRate float64 `json:"success_rate"`
	Failure     int     `json:"failure"`
	Running     int     `json:"running"`
	ActiveJobs  int     `json:"active_jobs"`
	// InProgress is Running plus ActiveJobs, as shown on the dashboard card.
	InProgress int `json:"in_progress"`
}

// Stats computes Statistics over executions and the current running jobs.
func Stats(executions []domain.Execution, runningJobs []domain.RunningJob) Statistics {
	s := Statistics{Total: len(executions), ActiveJobs: len(runningJobs)}
	for _, e := range executions {
		switch e.Status {
		case domain.StatusSuccess:
			s.Success++
		case domain.StatusFailure:
			s.Failure++
		case domain.StatusRunning:
			s.Running++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = math.Round(float64(s.Success)/float64(s.Total)*1000) / 10
	}
	s.InProgress = s.Running + s.ActiveJobs
	return s
}
