package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/jobs"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/planner"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/storage"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) (*Server, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	svc := planner.New(store, store, config.DefaultSnapshot(), slog.Default())
	return New(svc, store, jobs.NewRemediator(store, store), testAPIKey, slog.Default()), store
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

var validProgram = map[string]any{
	"name":                "Base block",
	"duration_weeks":      8,
	"goals":               []map[string]any{{"goal": "strength", "weight": 2}, {"goal": "fat_loss", "weight": 1}},
	"days_per_week":       4,
	"max_session_minutes": 60,
	"start_date":          "2026-05-04",
}

func createProgram(t *testing.T, s *Server) programResponse {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/programs", validProgram)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp programResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp
}

// TestCreateProgram verifies a valid program returns its skeleton and queues generation.
func TestCreateProgram(t *testing.T) {
	s, store := newTestServer(t)
	resp := createProgram(t, s)

	if resp.Program.ID == uuid.Nil {
		t.Fatal("program ID not set")
	}
	total := 0
	for _, mc := range resp.Microcycles {
		total += mc.LengthDays
	}
	if total != 56 {
		t.Errorf("total days = %d, want 56", total)
	}
	if n := len(store.Jobs()); n != 1 {
		t.Errorf("jobs = %d, want 1", n)
	}
}

// TestCreateProgramValidation verifies invalid programs get 400 with the offending field.
func TestCreateProgramValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(map[string]any)
		field string
	}{
		{"odd weeks", func(b map[string]any) { b["duration_weeks"] = 9 }, "duration_weeks"},
		{"no goals", func(b map[string]any) { b["goals"] = []any{} }, "goals"},
		{"conflict", func(b map[string]any) {
			b["goals"] = []map[string]any{{"goal": "strength", "weight": 1}, {"goal": "endurance", "weight": 1}}
		}, "goals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			body := map[string]any{}
			for k, v := range validProgram {
				body[k] = v
			}
			tt.edit(body)

			rec := do(t, s, http.MethodPost, "/api/v1/programs", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp map[string]string
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp["field"] != tt.field {
				t.Errorf("field = %q, want %q", resp["field"], tt.field)
			}
		})
	}
}

// TestCreateProgramBadDate verifies the start date is parsed before validation.
func TestCreateProgramBadDate(t *testing.T) {
	s, _ := newTestServer(t)
	body := map[string]any{}
	for k, v := range validProgram {
		body[k] = v
	}
	body["start_date"] = "next monday"

	if rec := do(t, s, http.MethodPost, "/api/v1/programs", body); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestStatusEndpoints verifies program and microcycle status report pending sessions.
func TestStatusEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	resp := createProgram(t, s)
	first := resp.Microcycles[0]

	rec := do(t, s, http.MethodGet, "/api/v1/microcycles/"+first.ID.String()+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var prog sequencer.Progress
	json.NewDecoder(rec.Body).Decode(&prog)
	if prog.Total != len(first.Sessions) || prog.Pending != prog.Total {
		t.Errorf("progress = %+v, want %d pending", prog, len(first.Sessions))
	}

	rec = do(t, s, http.MethodGet, "/api/v1/programs/"+resp.Program.ID.String()+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st storage.ProgramStatus
	json.NewDecoder(rec.Body).Decode(&st)
	if len(st.Microcycles) != len(resp.Microcycles) {
		t.Errorf("microcycles = %d, want %d", len(st.Microcycles), len(resp.Microcycles))
	}
}

// TestNotFoundAndBadID verifies unknown IDs get 404 and malformed IDs 400.
func TestNotFoundAndBadID(t *testing.T) {
	s, _ := newTestServer(t)

	paths := []string{
		"/api/v1/programs/" + uuid.NewString(),
		"/api/v1/microcycles/" + uuid.NewString() + "/status",
		"/api/v1/sessions/" + uuid.NewString(),
		"/api/v1/jobs/" + uuid.NewString(),
	}
	for _, p := range paths {
		if rec := do(t, s, http.MethodGet, p, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", p, rec.Code)
		}
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestGenerateEnqueues verifies generation is queued, not run inline.
func TestGenerateEnqueues(t *testing.T) {
	s, store := newTestServer(t)
	resp := createProgram(t, s)
	second := resp.Microcycles[1]

	rec := do(t, s, http.MethodPost, "/api/v1/microcycles/"+second.ID.String()+"/generate", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var job models.Job
	json.NewDecoder(rec.Body).Decode(&job)
	if job.MicrocycleID != second.ID || job.Status != models.JobQueued {
		t.Errorf("job = %+v", job)
	}

	mc, err := store.GetMicrocycle(t.Context(), second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if mc.GenerationStatus != models.GenPending {
		t.Errorf("generation status = %s, want PENDING", mc.GenerationStatus)
	}
}

// TestAdvanceConflict verifies advancing while the active microcycle is generating returns 409.
func TestAdvanceConflict(t *testing.T) {
	s, _ := newTestServer(t)
	resp := createProgram(t, s)

	rec := do(t, s, http.MethodPost, "/api/v1/programs/"+resp.Program.ID.String()+"/advance", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestAdminRequiresKey verifies remediation is behind the API key.
func TestAdminRequiresKey(t *testing.T) {
	s, _ := newTestServer(t)
	body := sessionIDsRequest{SessionIDs: []uuid.UUID{uuid.New()}}

	if rec := do(t, s, http.MethodPost, "/api/v1/admin/sessions/requeue", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/v1/admin/sessions/requeue", body, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown sessions", rec.Code)
	}
}

// TestAdminRequeue verifies requeue marks sessions failed and queues one job per microcycle.
func TestAdminRequeue(t *testing.T) {
	s, store := newTestServer(t)
	resp := createProgram(t, s)
	target := resp.Microcycles[0].Sessions[0].ID

	rec := do(t, s, http.MethodPost, "/api/v1/admin/sessions/requeue",
		sessionIDsRequest{SessionIDs: []uuid.UUID{target}}, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res jobs.RemediationResult
	json.NewDecoder(rec.Body).Decode(&res)
	if len(res.Jobs) != 1 || res.Marked != 1 {
		t.Errorf("result = %+v", res)
	}

	sess, err := store.GetSession(t.Context(), target)
	if err != nil {
		t.Fatal(err)
	}
	if sess.GenerationStatus != models.GenFailed {
		t.Errorf("session status = %s, want FAILED", sess.GenerationStatus)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/admin/sessions/regenerate",
		sessionIDsRequest{}, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty regenerate status = %d, want 400", rec.Code)
	}
}
