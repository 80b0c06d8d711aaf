package server

import (
	"github.com/caevv/suiteboard/internal/scheduler"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/views"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string           `json:"status"`
	Version     string           `json:"version"`
	Uptime      string           `json:"uptime"`
	RunningJobs int              `json:"running_jobs"`
	Scheduler   *scheduler.Stats `json:"scheduler,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// Trigger modes accepted by POST /api/trigger.
const (
	ModeAll      = "all"
	ModeFiltered = "filtered"
	ModeSelected = "selected"
	modeSingle   = "single"
)

// TriggerRequest selects the suites to run.
type TriggerRequest struct {
	Mode     string            `json:"mode"`
	Filter   views.SuiteFilter `json:"filter"`
	SuiteIDs []string          `json:"suite_ids"`
}

// TriggerResponse lists the jobs started by a trigger request.
type TriggerResponse struct {
	Triggered int                `json:"triggered"`
	Jobs      []simulator.Handle `json:"jobs"`
}
