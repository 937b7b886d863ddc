// Package jobs runs generation work in the background. HTTP handlers and the
// periodic sweep only write job records; a pool of workers claims and runs them.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/sequencer"
)

// Queue is the job table.
type Queue interface {
	EnqueueJob(ctx context.Context, job *models.Job) error
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	FinishJob(ctx context.Context, id uuid.UUID, runErr error) error
}

// Handler executes one claimed job.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) error
}

// Generator runs the sequencer for one microcycle.
type Generator interface {
	Run(ctx context.Context, microcycleID uuid.UUID, opts sequencer.RunOptions) (sequencer.Progress, error)
}

var _ Generator = (*sequencer.Sequencer)(nil)

// MicrocycleReader loads a microcycle with its sessions.
type MicrocycleReader interface {
	GetMicrocycle(ctx context.Context, id uuid.UUID) (*models.Microcycle, error)
}

// Runner dispatches jobs to the sequencer.
type Runner struct {
	gen     Generator
	reader  MicrocycleReader
	catalog catalog.Catalog
	log     *slog.Logger
}

var _ Handler = (*Runner)(nil)

func NewRunner(gen Generator, reader MicrocycleReader, cat catalog.Catalog, log *slog.Logger) *Runner {
	return &Runner{gen: gen, reader: reader, catalog: cat, log: log}
}

// Handle runs the job. Session failures are recorded on the sessions, so the
// job itself only fails when the microcycle could not be processed.
func (r *Runner) Handle(ctx context.Context, job *models.Job) error {
	var opts sequencer.RunOptions
	switch job.Kind {
	case models.JobGenerateMicrocycle:
	case models.JobRegenerateSessions:
		var err error
		opts, err = r.regenerationOptions(ctx, job)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}

	prog, err := r.gen.Run(ctx, job.MicrocycleID, opts)
	if err != nil {
		return fmt.Errorf("running %s: %w", job.Kind, err)
	}
	r.log.Info("job finished",
		"job_id", job.ID,
		"kind", job.Kind,
		"microcycle_id", job.MicrocycleID,
		"status", prog.Status,
		"completed", prog.Completed,
		"failed", prog.Failed,
	)
	return nil
}

// regenerationOptions seeds the diversity state from the microcycle's other
// completed sessions so regenerated sessions stay distinct from them.
func (r *Runner) regenerationOptions(ctx context.Context, job *models.Job) (sequencer.RunOptions, error) {
	if len(job.SessionIDs) == 0 {
		return sequencer.RunOptions{}, fmt.Errorf("regeneration job %s has no sessions", job.ID)
	}
	mc, err := r.reader.GetMicrocycle(ctx, job.MicrocycleID)
	if err != nil {
		return sequencer.RunOptions{}, fmt.Errorf("loading microcycle: %w", err)
	}

	targets := make(map[uuid.UUID]bool, len(job.SessionIDs))
	for _, id := range job.SessionIDs {
		targets[id] = true
	}
	var others []models.Session
	for _, s := range mc.Sessions {
		if !targets[s.ID] {
			others = append(others, s)
		}
	}

	st, err := sequencer.SeedState(ctx, r.catalog, others)
	if err != nil {
		return sequencer.RunOptions{}, fmt.Errorf("seeding state: %w", err)
	}
	return sequencer.RunOptions{SessionIDs: job.SessionIDs, State: st}, nil
}
