package models

import (
	"time"

	"github.com/google/uuid"
)

// JobKind is the work a job record asks for.
type JobKind string

const (
	JobGenerateMicrocycle JobKind = "generate_microcycle"
	JobRegenerateSessions JobKind = "regenerate_sessions"
)

// JobStatus is the lifecycle state of a job record.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a unit of background generation work. HTTP handlers and the sweep
// only enqueue jobs; the worker pool runs them.
type Job struct {
	ID           uuid.UUID   `json:"id"`
	Kind         JobKind     `json:"kind"`
	ProgramID    uuid.UUID   `json:"program_id"`
	MicrocycleID uuid.UUID   `json:"microcycle_id"`
	SessionIDs   []uuid.UUID `json:"session_ids,omitempty"`
	Status       JobStatus   `json:"status"`
	Attempts     int         `json:"attempts"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
}

// SessionRef locates a session within its microcycle and program.
type SessionRef struct {
	SessionID    uuid.UUID `json:"session_id"`
	MicrocycleID uuid.UUID `json:"microcycle_id"`
	ProgramID    uuid.UUID `json:"program_id"`
}
