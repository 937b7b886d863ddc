package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/storage"
)

// --- Tool definitions ---

var toolGetProgram = mcp.NewTool("get_program",
	mcp.WithDescription("Retrieve a training program with its microcycle skeleton: cycle lengths, deload flags, and the session type planned for each day."),
	mcp.WithString("program_id", mcp.Required(), mcp.Description("Program UUID")),
)

var toolGetProgramStatus = mcp.NewTool("get_program_status",
	mcp.WithDescription("Per-microcycle generation progress for a program: total, pending, in progress, completed and failed session counts."),
	mcp.WithString("program_id", mcp.Required(), mcp.Description("Program UUID")),
)

var toolGetMicrocycle = mcp.NewTool("get_microcycle",
	mcp.WithDescription("Retrieve one microcycle with all of its sessions, including generated exercise content where available."),
	mcp.WithString("microcycle_id", mcp.Required(), mcp.Description("Microcycle UUID")),
)

var toolGetMicrocycleStatus = mcp.NewTool("get_microcycle_status",
	mcp.WithDescription("Generation progress for one microcycle, including the overall status and per-session status with failure notes."),
	mcp.WithString("microcycle_id", mcp.Required(), mcp.Description("Microcycle UUID")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Retrieve one session: type, intent tags, warmup, main, accessory, finisher and cooldown content, and notes."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolGenerateMicrocycle = mcp.NewTool("generate_microcycle",
	mcp.WithDescription("Queue background content generation for a microcycle. Returns the queued job; poll get_microcycle_status or get_job for progress."),
	mcp.WithString("microcycle_id", mcp.Required(), mcp.Description("Microcycle UUID")),
)

var toolGetJob = mcp.NewTool("get_job",
	mcp.WithDescription("Retrieve a background generation job: kind, status, attempts and last error."),
	mcp.WithString("job_id", mcp.Required(), mcp.Description("Job UUID")),
)

// --- Handlers ---

func (h *handlers) getProgram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "program_id")
	if res != nil {
		return res, nil
	}
	p, err := h.ds.GetProgram(ctx, id)
	if err != nil {
		return toolError("loading program", err), nil
	}
	cycles, err := h.ds.ListMicrocycles(ctx, id)
	if err != nil {
		return toolError("loading microcycles", err), nil
	}

	type cycleSummary struct {
		ID               uuid.UUID               `json:"id"`
		Sequence         int                     `json:"sequence"`
		StartDate        string                  `json:"start_date"`
		LengthDays       int                     `json:"length_days"`
		IsDeload         bool                    `json:"is_deload"`
		Status           models.CycleStatus      `json:"status"`
		GenerationStatus models.GenerationStatus `json:"generation_status"`
		Days             []models.SessionType    `json:"days"`
	}
	summaries := make([]cycleSummary, 0, len(cycles))
	for _, mc := range cycles {
		days := make([]models.SessionType, len(mc.Sessions))
		for i, s := range mc.Sessions {
			days[i] = s.Type
		}
		summaries = append(summaries, cycleSummary{
			ID:               mc.ID,
			Sequence:         mc.Sequence,
			StartDate:        mc.StartDate.Format("2006-01-02"),
			LengthDays:       mc.LengthDays,
			IsDeload:         mc.IsDeload,
			Status:           mc.Status,
			GenerationStatus: mc.GenerationStatus,
			Days:             days,
		})
	}

	return jsonResult(map[string]any{
		"program":     p,
		"microcycles": summaries,
	})
}

func (h *handlers) getProgramStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "program_id")
	if res != nil {
		return res, nil
	}
	st, err := h.ds.ProgramStatus(ctx, id)
	if err != nil {
		return toolError("loading program status", err), nil
	}
	return jsonResult(st)
}

func (h *handlers) getMicrocycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "microcycle_id")
	if res != nil {
		return res, nil
	}
	mc, err := h.ds.GetMicrocycle(ctx, id)
	if err != nil {
		return toolError("loading microcycle", err), nil
	}
	return jsonResult(mc)
}

func (h *handlers) getMicrocycleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "microcycle_id")
	if res != nil {
		return res, nil
	}
	prog, err := h.ds.MicrocycleProgress(ctx, id)
	if err != nil {
		return toolError("loading microcycle status", err), nil
	}
	return jsonResult(prog)
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "session_id")
	if res != nil {
		return res, nil
	}
	sess, err := h.ds.GetSession(ctx, id)
	if err != nil {
		return toolError("loading session", err), nil
	}
	return jsonResult(sess)
}

func (h *handlers) generateMicrocycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "microcycle_id")
	if res != nil {
		return res, nil
	}
	mc, err := h.ds.GetMicrocycle(ctx, id)
	if err != nil {
		return toolError("loading microcycle", err), nil
	}
	if mc.GenerationStatus == models.GenInProgress {
		return mcp.NewToolResultError("microcycle is already generating; poll get_microcycle_status"), nil
	}

	job := &models.Job{
		Kind:         models.JobGenerateMicrocycle,
		ProgramID:    mc.ProgramID,
		MicrocycleID: mc.ID,
	}
	if err := h.ds.EnqueueJob(ctx, job); err != nil {
		return toolError("queueing generation", err), nil
	}
	h.log.Info("generation queued via mcp", "microcycle_id", mc.ID, "job_id", job.ID)
	return jsonResult(job)
}

func (h *handlers) getJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireID(req, "job_id")
	if res != nil {
		return res, nil
	}
	job, err := h.ds.GetJob(ctx, id)
	if err != nil {
		return toolError("loading job", err), nil
	}
	return jsonResult(job)
}

// requireID returns a tool error result when the argument is missing or not a UUID.
func requireID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(err.Error())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return id, nil
}

func toolError(doing string, err error) *mcp.CallToolResult {
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: not found", doing))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", doing, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
