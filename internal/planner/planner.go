// Package planner creates programs: it validates them, lays out the
// microcycle skeleton, persists it and queues content generation.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/structure"
)

var (
	ErrNoActiveMicrocycle = errors.New("program has no active microcycle")
	ErrGenerationRunning  = errors.New("active microcycle is still generating")
)

// Repository is the persistence the planner needs.
type Repository interface {
	CreateProgram(ctx context.Context, p *models.Program, cycles []models.Microcycle) error
	GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error)
	ListMicrocycles(ctx context.Context, programID uuid.UUID) ([]models.Microcycle, error)
	SetCycleStatuses(ctx context.Context, statuses map[uuid.UUID]models.CycleStatus) error
}

// Enqueuer queues background jobs.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job *models.Job) error
}

// StructureResult is the outcome of laying out a program. A non-nil Err means
// the structural step failed; the caller decides whether to retry.
type StructureResult struct {
	Program     *models.Program     `json:"program,omitempty"`
	Microcycles []models.Microcycle `json:"microcycles,omitempty"`
	Err         error               `json:"-"`
}

// OK reports whether the structure was created.
func (r StructureResult) OK() bool { return r.Err == nil }

// Service creates and advances programs.
type Service struct {
	repo Repository
	jobs Enqueuer
	cfg  config.Snapshot
	log  *slog.Logger
}

// New creates a Service. jobs may be nil, in which case nothing is queued.
func New(repo Repository, jobs Enqueuer, cfg config.Snapshot, log *slog.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, cfg: cfg, log: log}
}

// Create validates the program and builds its skeleton. Validation errors
// are returned directly and nothing is stored; structural failures come back
// in the result.
func (s *Service) Create(ctx context.Context, p *models.Program) (StructureResult, error) {
	if err := p.Validate(); err != nil {
		return StructureResult{}, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Preferences.CardioDedication == "" {
		p.Preferences.CardioDedication = models.CardioAuto
	}

	cycles, err := structure.NewBuilder(s.cfg, s.log).Build(p)
	if err != nil {
		return StructureResult{Program: p, Err: fmt.Errorf("building structure: %w", err)}, nil
	}
	if err := s.repo.CreateProgram(ctx, p, cycles); err != nil {
		return StructureResult{Program: p, Err: fmt.Errorf("saving structure: %w", err)}, nil
	}
	s.log.Info("program created",
		"program_id", p.ID,
		"weeks", p.DurationWeeks,
		"microcycles", len(cycles),
	)

	s.enqueueGeneration(ctx, p.ID, cycles[0].ID)
	return StructureResult{Program: p, Microcycles: cycles}, nil
}

// AdvanceMicrocycle completes the active microcycle and activates the next
// one. It returns the newly active microcycle, or nil when the program is done.
func (s *Service) AdvanceMicrocycle(ctx context.Context, programID uuid.UUID) (*models.Microcycle, error) {
	cycles, err := s.repo.ListMicrocycles(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("listing microcycles: %w", err)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Sequence < cycles[j].Sequence })

	idx := -1
	for i, mc := range cycles {
		if mc.Status == models.CycleActive {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNoActiveMicrocycle
	}
	active := cycles[idx]
	if !active.GenerationStatus.Terminal() {
		return nil, fmt.Errorf("microcycle %d: %w", active.Sequence, ErrGenerationRunning)
	}

	statuses := map[uuid.UUID]models.CycleStatus{active.ID: models.CycleComplete}
	var next *models.Microcycle
	if idx+1 < len(cycles) {
		next = &cycles[idx+1]
		next.Status = models.CycleActive
		statuses[next.ID] = models.CycleActive
	}
	if err := s.repo.SetCycleStatuses(ctx, statuses); err != nil {
		return nil, fmt.Errorf("advancing microcycle: %w", err)
	}

	if next == nil {
		s.log.Info("program finished", "program_id", programID)
		return nil, nil
	}
	s.log.Info("microcycle advanced", "program_id", programID, "sequence", next.Sequence)
	if next.GenerationStatus == models.GenPending {
		s.enqueueGeneration(ctx, programID, next.ID)
	}
	return next, nil
}

// Program returns a program with its microcycles.
func (s *Service) Program(ctx context.Context, id uuid.UUID) (*models.Program, []models.Microcycle, error) {
	p, err := s.repo.GetProgram(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting program: %w", err)
	}
	cycles, err := s.repo.ListMicrocycles(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing microcycles: %w", err)
	}
	return p, cycles, nil
}

// enqueueGeneration queues content generation. Failures are logged; the
// sweep picks the microcycle up later.
func (s *Service) enqueueGeneration(ctx context.Context, programID, microcycleID uuid.UUID) {
	if s.jobs == nil {
		return
	}
	job := &models.Job{
		ID:           uuid.New(),
		Kind:         models.JobGenerateMicrocycle,
		ProgramID:    programID,
		MicrocycleID: microcycleID,
		Status:       models.JobQueued,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.jobs.EnqueueJob(ctx, job); err != nil {
		s.log.Warn("queueing generation", "program_id", programID, "microcycle_id", microcycleID, "error", err)
	}
}
