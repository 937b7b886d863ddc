package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. *storage.DB (local),
// *storage.Memory (tests) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error)
	ListMicrocycles(ctx context.Context, programID uuid.UUID) ([]models.Microcycle, error)
	ProgramStatus(ctx context.Context, programID uuid.UUID) (*storage.ProgramStatus, error)
	GetMicrocycle(ctx context.Context, id uuid.UUID) (*models.Microcycle, error)
	MicrocycleProgress(ctx context.Context, id uuid.UUID) (sequencer.Progress, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	EnqueueJob(ctx context.Context, job *models.Job) error
}

var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*storage.Memory)(nil)
)
