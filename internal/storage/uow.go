package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/sequencer"
)

var _ sequencer.Store = (*DB)(nil)

// Tx is a unit of work backed by one database transaction.
type Tx struct {
	tx pgx.Tx
}

var _ sequencer.UnitOfWork = (*Tx)(nil)

// Begin opens a unit of work.
func (db *DB) Begin(ctx context.Context) (sequencer.UnitOfWork, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) LoadMicrocycle(ctx context.Context, id uuid.UUID) (*models.Program, *models.Microcycle, error) {
	mc, err := getMicrocycle(ctx, t.tx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := getProgram(ctx, t.tx, mc.ProgramID)
	if err != nil {
		return nil, nil, err
	}
	return p, mc, nil
}

func (t *Tx) SetMicrocycleStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE microcycles SET generation_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating microcycle generation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("microcycle %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *Tx) SetSessionStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sessions SET generation_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *Tx) SaveSession(ctx context.Context, s *models.Session) error {
	content, err := encodeContent(s)
	if err != nil {
		return fmt.Errorf("encoding session content: %w", err)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE sessions SET patterns = $2, tags = $3, generation_status = $4, estimated_minutes = $5,
		 coach_notes = $6, content = $7, updated_at = NOW()
		 WHERE id = $1`,
		s.ID, nonNil(s.Patterns), nonNil(s.Tags), s.GenerationStatus, s.EstimatedMinutes, s.CoachNotes, content)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
