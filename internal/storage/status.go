package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/sequencer"
)

// CycleProgress is one microcycle's entry in a program status report.
type CycleProgress struct {
	Sequence    int                `json:"sequence"`
	CycleStatus models.CycleStatus `json:"cycle_status"`
	IsDeload    bool               `json:"is_deload"`
	sequencer.Progress
}

// ProgramStatus reports generation progress across a program.
type ProgramStatus struct {
	ProgramID   uuid.UUID       `json:"program_id"`
	Microcycles []CycleProgress `json:"microcycles"`
}

// sessionStatus builds a progress entry. Failed sessions carry their notes.
func sessionStatus(id uuid.UUID, day int, typ models.SessionType, status models.GenerationStatus, notes string) sequencer.SessionStatus {
	s := sequencer.SessionStatus{SessionID: id, Day: day, Type: typ, Status: status}
	if status == models.GenFailed {
		s.Note = notes
	}
	return s
}

// MicrocycleProgress summarizes generation of one microcycle for polling.
func (db *DB) MicrocycleProgress(ctx context.Context, id uuid.UUID) (sequencer.Progress, error) {
	prog := sequencer.Progress{MicrocycleID: id}
	err := db.Pool.QueryRow(ctx,
		`SELECT generation_status FROM microcycles WHERE id = $1`, id).Scan(&prog.Status)
	if err != nil {
		return prog, notFound(err, "microcycle")
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, day_number, session_type, generation_status, coach_notes
		 FROM sessions WHERE microcycle_id = $1 ORDER BY day_number`, id)
	if err != nil {
		return prog, fmt.Errorf("querying session statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sid    uuid.UUID
			day    int
			typ    models.SessionType
			status models.GenerationStatus
			notes  string
		)
		if err := rows.Scan(&sid, &day, &typ, &status, &notes); err != nil {
			return prog, fmt.Errorf("scanning session status: %w", err)
		}
		prog.Add(sessionStatus(sid, day, typ, status, notes))
	}
	return prog, rows.Err()
}

// ProgramStatus summarizes every microcycle of a program.
func (db *DB) ProgramStatus(ctx context.Context, programID uuid.UUID) (*ProgramStatus, error) {
	if _, err := db.GetProgram(ctx, programID); err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT m.id, m.sequence, m.status, m.is_deload, m.generation_status,
		       s.id, s.day_number, s.session_type, s.generation_status, s.coach_notes
		FROM microcycles m
		JOIN sessions s ON s.microcycle_id = m.id
		WHERE m.program_id = $1
		ORDER BY m.sequence, s.day_number`, programID)
	if err != nil {
		return nil, fmt.Errorf("querying program status: %w", err)
	}
	defer rows.Close()

	out := &ProgramStatus{ProgramID: programID}
	for rows.Next() {
		var (
			mcID     uuid.UUID
			seq      int
			cycle    models.CycleStatus
			deload   bool
			mcStatus models.GenerationStatus
			sid      uuid.UUID
			day      int
			typ      models.SessionType
			status   models.GenerationStatus
			notes    string
		)
		if err := rows.Scan(&mcID, &seq, &cycle, &deload, &mcStatus, &sid, &day, &typ, &status, &notes); err != nil {
			return nil, fmt.Errorf("scanning program status: %w", err)
		}
		n := len(out.Microcycles)
		if n == 0 || out.Microcycles[n-1].MicrocycleID != mcID {
			out.Microcycles = append(out.Microcycles, CycleProgress{
				Sequence:    seq,
				CycleStatus: cycle,
				IsDeload:    deload,
				Progress:    sequencer.Progress{MicrocycleID: mcID, Status: mcStatus},
			})
			n++
		}
		out.Microcycles[n-1].Add(sessionStatus(sid, day, typ, status, notes))
	}
	return out, rows.Err()
}
