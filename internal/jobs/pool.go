package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shourjoguha/alloy/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = time.Second
	finishTimeout       = 5 * time.Second
)

// Pool is a fixed set of workers polling the queue.
type Pool struct {
	queue    Queue
	handler  Handler
	workers  int
	interval time.Duration
	log      *slog.Logger
}

// NewPool creates a pool. workers below 1 is treated as 1.
func NewPool(queue Queue, handler Handler, workers int, log *slog.Logger) *Pool {
	return &Pool{
		queue:    queue,
		handler:  handler,
		workers:  max(workers, 1),
		interval: defaultPollInterval,
		log:      log.With("component", "jobs"),
	}
}

// WithInterval sets how often idle workers poll.
func (p *Pool) WithInterval(d time.Duration) *Pool {
	p.interval = d
	return p
}

// Run blocks until ctx is cancelled. A job interrupted by shutdown is left
// running so RequeueStaleJobs picks it up on the next start.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("starting job workers", "workers", p.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= p.workers; i++ {
		workerID := i
		g.Go(func() error {
			p.loop(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("worker stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Keep claiming until the queue has nothing runnable.
			for ctx.Err() == nil {
				ok, err := p.RunOne(ctx, workerID)
				if err != nil {
					p.log.Warn("claiming job", "worker_id", workerID, "error", err)
				}
				if !ok {
					break
				}
			}
		}
	}
}

// RunOne claims and runs a single job. It reports false when nothing was runnable.
func (p *Pool) RunOne(ctx context.Context, workerID int) (bool, error) {
	job, err := p.queue.ClaimNextJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := p.log.With("worker_id", workerID, "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempts)
	log.Info("job claimed", "microcycle_id", job.MicrocycleID)

	runErr := p.handle(ctx, job)
	if ctx.Err() != nil {
		log.Warn("job interrupted by shutdown")
		return true, nil
	}
	if runErr != nil {
		log.Error("job failed", "error", runErr)
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := p.queue.FinishJob(fctx, job.ID, runErr); err != nil {
		return true, fmt.Errorf("finishing job %s: %w", job.ID, err)
	}
	return true, nil
}

// Drain runs jobs on the calling goroutine until nothing is runnable.
func (p *Pool) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		ok, err := p.RunOne(ctx, 0)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

func (p *Pool) handle(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return p.handler.Handle(ctx, job)
}
