package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shourjoguha/alloy/internal/models"
)

var vocabulary = map[string]any{
	"session_types": []models.SessionType{
		models.SessionUpper, models.SessionLower, models.SessionPush, models.SessionPull, models.SessionLegs,
		models.SessionFullBody, models.SessionCardio, models.SessionMobility, models.SessionCustom, models.SessionRecovery,
	},
	"patterns": []string{
		models.PatternSquat, models.PatternHinge, models.PatternLunge,
		models.PatternHorizontalPush, models.PatternVerticalPush,
		models.PatternHorizontalPull, models.PatternVerticalPull,
		models.PatternCarry, models.PatternCore, models.PatternRotation,
		models.PatternConditioning, models.PatternCardio, models.PatternMobility, models.PatternIsolation,
	},
	"goals":              models.AllGoals,
	"roles":              []models.Role{models.RoleWarmup, models.RoleMain, models.RoleAccessory, models.RoleFinisher, models.RoleCooldown},
	"generation_status":  []models.GenerationStatus{models.GenPending, models.GenInProgress, models.GenCompleted, models.GenFailed},
	"microcycle_status":  []models.CycleStatus{models.CyclePlanned, models.CycleActive, models.CycleComplete},
	"session_tags":       []string{models.TagPreferAccessory, models.TagPreferFinisher, models.TagConditioning},
	"microcycle_lengths": map[string]int{"min_days": models.MinCycleLength, "max_days": models.MaxCycleLength},
}

func (h *handlers) vocabulary(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(vocabulary)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
