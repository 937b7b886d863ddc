package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron"
	"github.com/shourjoguha/alloy/internal/models"
)

// EligibleSource lists microcycles ready for generation.
type EligibleSource interface {
	EligibleMicrocycles(ctx context.Context) ([]models.Microcycle, error)
}

// Scheduler periodically queues generation for eligible microcycles, so the
// next microcycle is prepared once the one before it has finished.
type Scheduler struct {
	source EligibleSource
	queue  Queue
	spec   string
	cron   *cron.Cron
	log    *slog.Logger
}

func NewScheduler(source EligibleSource, queue Queue, spec string, log *slog.Logger) *Scheduler {
	return &Scheduler{
		source: source,
		queue:  queue,
		spec:   spec,
		cron:   cron.New(),
		log:    log.With("component", "sweep"),
	}
}

// Start registers the sweep and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Warn("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling sweep %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Info("sweep scheduled", "schedule", s.spec)
	return nil
}

// Stop halts future sweeps. A sweep already running is not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Sweep queues one generation job per eligible microcycle.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	cycles, err := s.source.EligibleMicrocycles(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing eligible microcycles: %w", err)
	}

	queued := 0
	for _, mc := range cycles {
		job := &models.Job{
			Kind:         models.JobGenerateMicrocycle,
			ProgramID:    mc.ProgramID,
			MicrocycleID: mc.ID,
		}
		if err := s.queue.EnqueueJob(ctx, job); err != nil {
			s.log.Warn("queueing generation", "microcycle_id", mc.ID, "error", err)
			continue
		}
		queued++
		s.log.Debug("generation queued", "program_id", mc.ProgramID, "sequence", mc.Sequence, "job_id", job.ID)
	}
	if queued > 0 {
		s.log.Info("sweep queued generation", "jobs", queued)
	}
	return queued, nil
}
