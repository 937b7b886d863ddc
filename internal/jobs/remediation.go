package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/models"
)

// ErrNoSessions is returned when none of the requested sessions exist.
var ErrNoSessions = errors.New("no matching sessions")

// SessionStore is what the remediation actions need besides the queue.
type SessionStore interface {
	SessionRefs(ctx context.Context, ids []uuid.UUID) ([]models.SessionRef, error)
	MarkSessionsFailed(ctx context.Context, ids []uuid.UUID, note string) (int64, error)
}

// RemediationResult reports what an admin action queued.
type RemediationResult struct {
	Requested int         `json:"requested"`
	Marked    int64       `json:"marked"`
	Missing   []uuid.UUID `json:"missing,omitempty"`
	Jobs      []uuid.UUID `json:"jobs"`
}

// RegenerationJobs groups sessions into one regenerate job per microcycle,
// keeping the order of refs.
func RegenerationJobs(refs []models.SessionRef) []*models.Job {
	var out []*models.Job
	index := map[uuid.UUID]int{}
	for _, r := range refs {
		i, ok := index[r.MicrocycleID]
		if !ok {
			i = len(out)
			index[r.MicrocycleID] = i
			out = append(out, &models.Job{
				Kind:         models.JobRegenerateSessions,
				ProgramID:    r.ProgramID,
				MicrocycleID: r.MicrocycleID,
			})
		}
		out[i].SessionIDs = append(out[i].SessionIDs, r.SessionID)
	}
	return out
}

// Remediator implements the admin actions on failed or unwanted sessions.
type Remediator struct {
	store SessionStore
	queue Queue
}

func NewRemediator(store SessionStore, queue Queue) *Remediator {
	return &Remediator{store: store, queue: queue}
}

// Requeue marks the sessions FAILED with note and queues their regeneration.
func (r *Remediator) Requeue(ctx context.Context, ids []uuid.UUID, note string) (*RemediationResult, error) {
	return r.enqueue(ctx, ids, func(found []uuid.UUID, res *RemediationResult) error {
		n, err := r.store.MarkSessionsFailed(ctx, found, note)
		if err != nil {
			return fmt.Errorf("marking sessions failed: %w", err)
		}
		res.Marked = n
		return nil
	})
}

// Regenerate queues regeneration without touching the sessions first.
func (r *Remediator) Regenerate(ctx context.Context, ids []uuid.UUID) (*RemediationResult, error) {
	return r.enqueue(ctx, ids, nil)
}

func (r *Remediator) enqueue(ctx context.Context, ids []uuid.UUID, before func([]uuid.UUID, *RemediationResult) error) (*RemediationResult, error) {
	res := &RemediationResult{Requested: len(ids)}
	refs, err := r.store.SessionRefs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving sessions: %w", err)
	}
	if len(refs) == 0 {
		return nil, ErrNoSessions
	}

	found := make([]uuid.UUID, len(refs))
	known := make(map[uuid.UUID]bool, len(refs))
	for i, ref := range refs {
		found[i] = ref.SessionID
		known[ref.SessionID] = true
	}
	for _, id := range ids {
		if !known[id] {
			res.Missing = append(res.Missing, id)
		}
	}

	if before != nil {
		if err := before(found, res); err != nil {
			return nil, err
		}
	}
	for _, job := range RegenerationJobs(refs) {
		if err := r.queue.EnqueueJob(ctx, job); err != nil {
			return res, fmt.Errorf("queueing regeneration: %w", err)
		}
		res.Jobs = append(res.Jobs, job.ID)
	}
	return res, nil
}
