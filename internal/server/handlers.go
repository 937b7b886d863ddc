package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/jobs"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/planner"
	"github.com/shourjoguha/alloy/internal/storage"
)

// createProgramRequest accepts dates as YYYY-MM-DD or RFC 3339.
type createProgramRequest struct {
	Name                 string                       `json:"name"`
	DurationWeeks        int                          `json:"duration_weeks"`
	Goals                models.GoalWeights           `json:"goals"`
	DaysPerWeek          int                          `json:"days_per_week"`
	MaxSessionMinutes    int                          `json:"max_session_minutes"`
	DeloadEvery          int                          `json:"deload_every"`
	PreferredCycleLength int                          `json:"preferred_cycle_length"`
	StartDate            string                       `json:"start_date"`
	Preferences          models.SchedulingPreferences `json:"preferences"`
	Rules                models.MovementRules         `json:"rules"`
}

type programResponse struct {
	Program     *models.Program     `json:"program"`
	Microcycles []models.Microcycle `json:"microcycles"`
}

type sessionIDsRequest struct {
	SessionIDs []uuid.UUID `json:"session_ids"`
	Note       string      `json:"note"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var req createProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date: " + err.Error()})
		return
	}

	p := &models.Program{
		Name:                 req.Name,
		DurationWeeks:        req.DurationWeeks,
		Goals:                req.Goals,
		DaysPerWeek:          req.DaysPerWeek,
		MaxSessionMinutes:    req.MaxSessionMinutes,
		DeloadEvery:          req.DeloadEvery,
		PreferredCycleLength: req.PreferredCycleLength,
		StartDate:            start,
		Preferences:          req.Preferences,
		Rules:                req.Rules,
	}
	res, err := s.planner.Create(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK() {
		s.log.Error("structuring program", "error", res.Err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": res.Err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, programResponse{Program: res.Program, Microcycles: res.Microcycles})
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "program")
	if !ok {
		return
	}
	p, cycles, err := s.planner.Program(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, programResponse{Program: p, Microcycles: cycles})
}

func (s *Server) handleProgramStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "program")
	if !ok {
		return
	}
	st, err := s.store.ProgramStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "program")
	if !ok {
		return
	}
	next, err := s.planner.AdvanceMicrocycle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if next == nil {
		writeJSON(w, http.StatusOK, map[string]any{"finished": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"finished": false, "microcycle": next})
}

func (s *Server) handleGetMicrocycle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "microcycle")
	if !ok {
		return
	}
	mc, err := s.store.GetMicrocycle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

func (s *Server) handleMicrocycleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "microcycle")
	if !ok {
		return
	}
	prog, err := s.store.MicrocycleProgress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// handleGenerate queues a full generation run for one microcycle.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "microcycle")
	if !ok {
		return
	}
	mc, err := s.store.GetMicrocycle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if mc.GenerationStatus == models.GenInProgress {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "microcycle is already generating"})
		return
	}

	job := &models.Job{
		Kind:         models.JobGenerateMicrocycle,
		ProgramID:    mc.ProgramID,
		MicrocycleID: mc.ID,
	}
	if err := s.store.EnqueueJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "session")
	if !ok {
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "job")
	if !ok {
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSessionIDs(w, r)
	if !ok {
		return
	}
	note := req.Note
	if note == "" {
		note = "Marked failed by an administrator. Regeneration queued."
	}
	res, err := s.remediator.Requeue(r.Context(), req.SessionIDs, note)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("sessions requeued", "requested", res.Requested, "marked", res.Marked, "jobs", len(res.Jobs))
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSessionIDs(w, r)
	if !ok {
		return
	}
	res, err := s.remediator.Regenerate(r.Context(), req.SessionIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("sessions regeneration queued", "requested", res.Requested, "jobs", len(res.Jobs))
	writeJSON(w, http.StatusAccepted, res)
}

func decodeSessionIDs(w http.ResponseWriter, r *http.Request) (sessionIDsRequest, bool) {
	var req sessionIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return req, false
	}
	if len(req.SessionIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_ids required"})
		return req, false
	}
	return req, true
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid %s ID", what)})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, jobs.ErrNoSessions):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, planner.ErrNoActiveMicrocycle), errors.Is(err, planner.ErrGenerationRunning):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("required")
	}
	t, err := time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
