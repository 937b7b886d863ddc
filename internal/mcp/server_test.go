package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/planner"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlers(t *testing.T) (*handlers, *storage.Memory, planner.StructureResult) {
	t.Helper()
	store := storage.NewMemory()
	svc := planner.New(store, store, config.DefaultSnapshot(), slog.Default())
	res, err := svc.Create(context.Background(), &models.Program{
		Name:              "Winter block",
		DurationWeeks:     8,
		Goals:             models.GoalWeights{{Goal: models.GoalStrength, Weight: 1}},
		DaysPerWeek:       3,
		MaxSessionMinutes: 45,
		StartDate:         time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, res.OK())
	return &handlers{ds: store, log: slog.Default()}, store, res
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

// TestGetProgramSummarizesSkeleton verifies the tool returns one day type per session.
func TestGetProgramSummarizesSkeleton(t *testing.T) {
	h, _, created := newHandlers(t)

	res, err := h.getProgram(context.Background(), call(map[string]any{"program_id": created.Program.ID.String()}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out struct {
		Program     models.Program `json:"program"`
		Microcycles []struct {
			LengthDays int                  `json:"length_days"`
			Days       []models.SessionType `json:"days"`
		} `json:"microcycles"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, created.Program.ID, out.Program.ID)
	require.Len(t, out.Microcycles, len(created.Microcycles))
	for _, mc := range out.Microcycles {
		assert.Len(t, mc.Days, mc.LengthDays)
	}
}

// TestToolArgumentErrors verifies missing and malformed IDs become tool errors, not Go errors.
func TestToolArgumentErrors(t *testing.T) {
	h, _, _ := newHandlers(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing", map[string]any{}},
		{"malformed", map[string]any{"session_id": "not-a-uuid"}},
		{"unknown", map[string]any{"session_id": uuid.NewString()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.getSession(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

// TestMicrocycleStatusTool verifies progress counts for a freshly structured microcycle.
func TestMicrocycleStatusTool(t *testing.T) {
	h, _, created := newHandlers(t)
	first := created.Microcycles[0]

	res, err := h.getMicrocycleStatus(context.Background(), call(map[string]any{"microcycle_id": first.ID.String()}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var prog sequencer.Progress
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &prog))
	assert.Equal(t, len(first.Sessions), prog.Total)
	assert.Equal(t, prog.Total, prog.Pending)
}

// TestGenerateMicrocycleTool verifies generation is queued and refused while in progress.
func TestGenerateMicrocycleTool(t *testing.T) {
	h, store, created := newHandlers(t)
	ctx := context.Background()
	second := created.Microcycles[1]

	res, err := h.generateMicrocycle(ctx, call(map[string]any{"microcycle_id": second.ID.String()}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var job models.Job
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &job))
	assert.Equal(t, second.ID, job.MicrocycleID)
	assert.Equal(t, models.JobQueued, job.Status)

	got, err := h.getJob(ctx, call(map[string]any{"job_id": job.ID.String()}))
	require.NoError(t, err)
	assert.False(t, got.IsError)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.SetMicrocycleStatus(ctx, second.ID, models.GenInProgress))
	require.NoError(t, uow.Commit(ctx))

	res, err = h.generateMicrocycle(ctx, call(map[string]any{"microcycle_id": second.ID.String()}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

// TestVocabularyResource verifies the resource lists every session type.
func TestVocabularyResource(t *testing.T) {
	h, _, _ := newHandlers(t)

	var req mcp.ReadResourceRequest
	req.Params.URI = "alloy://vocabulary"
	contents, err := h.vocabulary(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	var out struct {
		SessionTypes []models.SessionType `json:"session_types"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	assert.Len(t, out.SessionTypes, 10)
	assert.Contains(t, out.SessionTypes, models.SessionRecovery)
}

// TestNewRegistersTools verifies the server builds with the data source wired in.
func TestNewRegistersTools(t *testing.T) {
	_, store, _ := newHandlers(t)
	s := New(store, "test", slog.Default())
	require.NotNil(t, s)
}
