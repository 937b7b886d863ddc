package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shourjoguha/alloy/internal/models"
)

const jobColumns = `id, kind, program_id, microcycle_id, session_ids, status, attempts, error,
	created_at, started_at, finished_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var sessionIDs []string
	err := row.Scan(&j.ID, &j.Kind, &j.ProgramID, &j.MicrocycleID, &sessionIDs, &j.Status, &j.Attempts,
		&j.Error, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	for _, s := range sessionIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing session id %q: %w", s, err)
		}
		j.SessionIDs = append(j.SessionIDs, id)
	}
	return &j, nil
}

// EnqueueJob inserts a queued job.
func (db *DB) EnqueueJob(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = models.JobQueued
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO jobs (id, kind, program_id, microcycle_id, session_ids, status)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at`,
		job.ID, job.Kind, job.ProgramID, job.MicrocycleID, uuidStrings(job.SessionIDs), job.Status,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// ClaimNextJob marks the oldest runnable job as running and returns it, or
// nil when nothing is runnable. A job is runnable when no other job runs for
// the same microcycle and, for full generation, the previous microcycle has
// finished generating.
func (db *DB) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	job, err := scanJob(db.Pool.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', attempts = attempts + 1, started_at = NOW()
		WHERE id = (
		    SELECT j.id FROM jobs j
		    JOIN microcycles m ON m.id = j.microcycle_id
		    LEFT JOIN microcycles prev
		           ON prev.program_id = m.program_id AND prev.sequence = m.sequence - 1
		    WHERE j.status = 'queued'
		      AND NOT EXISTS (
		          SELECT 1 FROM jobs r
		          WHERE r.microcycle_id = j.microcycle_id AND r.status = 'running')
		      AND (j.kind <> 'generate_microcycle'
		           OR prev.id IS NULL
		           OR prev.generation_status IN ('COMPLETED', 'FAILED'))
		    ORDER BY j.created_at
		    LIMIT 1
		    FOR UPDATE OF j SKIP LOCKED
		)
		RETURNING `+jobColumns))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return job, nil
}

// FinishJob records a job's outcome. A nil runErr marks it done.
func (db *DB) FinishJob(ctx context.Context, id uuid.UUID, runErr error) error {
	status, msg := models.JobDone, ""
	if runErr != nil {
		status, msg = models.JobFailed, runErr.Error()
	}
	_, err := db.Pool.Exec(ctx,
		`UPDATE jobs SET status = $2, error = $3, finished_at = NOW() WHERE id = $1`, id, status, msg)
	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}
	return nil
}

// RequeueStaleJobs puts running jobs back in the queue, used at startup after
// an unclean shutdown.
func (db *DB) RequeueStaleJobs(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `UPDATE jobs SET status = 'queued', started_at = NULL WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("requeueing stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetJob returns one job.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "job")
	}
	return job, nil
}
