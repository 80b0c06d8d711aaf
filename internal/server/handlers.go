package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/caevv/suiteboard/internal/domain"
	"github.com/caevv/suiteboard/internal/logging"
	"github.com/caevv/suiteboard/internal/simulator"
	"github.com/caevv/suiteboard/internal/views"
)

const (
	version     = "v0.1.0"
	maxPageSize = 100
	maxBodySize = 1 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:      "ok",
		Version:     version,
		Uptime:      s.Uptime(),
		RunningJobs: s.reg.ActiveJobCount(),
	}
	if s.sweeper != nil {
		stats := s.sweeper.Stats()
		response.Scheduler = &stats
	}
	s.writeJSON(w, http.StatusOK, response)
}

// Suites

func (s *Server) handleListSuites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := views.SuiteFilter{
		Agent:          q.Get("agent"),
		Products:       q["product"],
		CloudProviders: q["cloud_provider"],
		Environments:   q["environment"],
		PodNames:       q["pod_name"],
		Type:           q.Get("type"),
	}
	s.writeJSON(w, http.StatusOK, views.FilterSuites(s.reg.Suites(), filter))
}

func (s *Server) handleSuiteOptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, views.SuiteFilterOptions(s.reg.Suites()))
}

func (s *Server) handleCreateSuite(w http.ResponseWriter, r *http.Request) {
	var spec domain.SuiteSpec
	if !s.decode(w, r, &spec) {
		return
	}
	suite, err := s.reg.AddSuite(spec)
	if err != nil && suite.ID == "" {
		s.writeDomainError(w, r, err)
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "suite created but not persisted", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, suite)
}

func (s *Server) handleGetSuite(w http.ResponseWriter, r *http.Request) {
	suite, ok := s.reg.Suite(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "suite not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, suite)
}

func (s *Server) handleUpdateSuite(w http.ResponseWriter, r *http.Request) {
	var patch domain.SuitePatch
	if !s.decode(w, r, &patch) {
		return
	}
	suite, err := s.reg.UpdateSuite(r.PathValue("id"), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suite)
}

func (s *Server) handleDeleteSuite(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.DeleteSuite(r.PathValue("id")); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to persist suites", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Trigger

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !s.decode(w, r, &req) {
		return
	}

	suites, ok := s.selectSuites(req)
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, "unknown trigger mode: "+req.Mode, nil)
		return
	}
	if len(suites) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "No test suites to trigger", nil)
		return
	}

	handles, err := s.runner.TriggerBatch(r.Context(), suites, simulator.ManualTrigger)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to trigger suites", err)
		return
	}

	logging.FromContext(r.Context()).Info("suites triggered",
		"mode", req.Mode, "count", len(handles))
	s.writeJSON(w, http.StatusAccepted, TriggerResponse{Triggered: len(handles), Jobs: handles})
}

// selectSuites resolves a trigger request to suites. Selected ids that no
// longer exist are skipped.
func (s *Server) selectSuites(req TriggerRequest) ([]domain.TestSuite, bool) {
	all := s.reg.Suites()
	switch req.Mode {
	case ModeAll:
		return all, true
	case ModeFiltered, "":
		return views.FilterSuites(all, req.Filter), true
	case ModeSelected, modeSingle:
		out := make([]domain.TestSuite, 0, len(req.SuiteIDs))
		for _, id := range req.SuiteIDs {
			if suite, ok := s.reg.Suite(id); ok {
				out = append(out, suite)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// Running jobs

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.RunningJobs())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.reg.RunningJob(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "job not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.runner.Cancel(id)
	switch {
	case errors.Is(err, simulator.ErrJobNotFound):
		s.writeError(w, r, http.StatusNotFound, "job not found", nil)
		return
	case errors.Is(err, simulator.ErrJobFinished):
		s.writeError(w, r, http.StatusConflict, "job already finished", nil)
		return
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, "failed to cancel job", err)
		return
	}

	job, _ := s.reg.RunningJob(id)
	s.writeJSON(w, http.StatusOK, job)
}

// Executions

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := views.ExecutionFilter{
		Product:     q.Get("product"),
		Environment: q.Get("environment"),
		Status:      domain.ExecutionStatus(q.Get("status")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "since must be an RFC3339 timestamp", nil)
			return
		}
		filter.Since = t
	}

	page := parseInt(q, "page", 1)
	size := min(parseInt(q, "page_size", views.DefaultPageSize), maxPageSize)

	matched := views.FilterExecutions(s.reg.Executions(), filter)
	s.writeJSON(w, http.StatusOK, views.Paginate(matched, page, size))
}

func (s *Server) handleExecutionOptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, views.ExecutionFilterOptions(s.reg.Executions()))
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	e, ok := s.reg.Execution(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "execution not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, views.Stats(s.reg.Executions(), s.reg.RunningJobs()))
}

// Schedules

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.Schedules())
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sch, ok := s.reg.Schedule(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "schedule not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var spec domain.ScheduleSpec
	if !s.decode(w, r, &spec) {
		return
	}
	sch, err := s.reg.AddSchedule(spec)
	if err != nil && sch.ID == "" {
		s.writeDomainError(w, r, err)
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "schedule created but not persisted", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sch)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var patch domain.SchedulePatch
	if !s.decode(w, r, &patch) {
		return
	}
	sch, err := s.reg.UpdateSchedule(r.PathValue("id"), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleToggleSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.reg.ToggleSchedule(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.DeleteSchedule(r.PathValue("id")); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to persist schedules", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helpers

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// writeDomainError maps registry errors to responses: field errors are 400
// with {"errors":{...}}, unknown ids 404, bad schedule timing 400.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, ve)
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidScheduleConfig):
		s.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		s.writeError(w, r, http.StatusInternalServerError, "storage write failed", err)
	}
}

func parseInt(q url.Values, key string, def int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response. A non-nil err is logged with the
// request logger.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		logging.FromContext(r.Context()).Error("API error", "status", status, "message", message, "error", err)
	}
	s.writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
