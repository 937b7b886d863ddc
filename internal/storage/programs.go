package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shourjoguha/alloy/internal/models"
)

// sessionContent is the JSON shape of a session's generated sections.
type sessionContent struct {
	Warmup    []models.ExerciseAssignment `json:"warmup,omitempty"`
	Main      []models.ExerciseAssignment `json:"main,omitempty"`
	Accessory []models.ExerciseAssignment `json:"accessory,omitempty"`
	Finisher  *models.Finisher            `json:"finisher,omitempty"`
	Cooldown  []models.ExerciseAssignment `json:"cooldown,omitempty"`
}

func encodeContent(s *models.Session) ([]byte, error) {
	return json.Marshal(sessionContent{
		Warmup:    s.Warmup,
		Main:      s.Main,
		Accessory: s.Accessory,
		Finisher:  s.Finisher,
		Cooldown:  s.Cooldown,
	})
}

func decodeContent(raw []byte, s *models.Session) error {
	var c sessionContent
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
	}
	s.Warmup, s.Main, s.Accessory, s.Finisher, s.Cooldown = c.Warmup, c.Main, c.Accessory, c.Finisher, c.Cooldown
	return nil
}

// CreateProgram stores a program with its whole skeleton in one transaction.
func (db *DB) CreateProgram(ctx context.Context, p *models.Program, cycles []models.Microcycle) error {
	goals, err := json.Marshal(p.Goals)
	if err != nil {
		return fmt.Errorf("encoding goals: %w", err)
	}
	prefs, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO programs (id, name, duration_weeks, goals, days_per_week, max_session_minutes,
		 deload_every, preferred_cycle_length, start_date, preferences, rules, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.Name, p.DurationWeeks, goals, p.DaysPerWeek, p.MaxSessionMinutes,
		p.DeloadEvery, p.PreferredCycleLength, p.StartDate, prefs, rules, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting program: %w", err)
	}

	batch := &pgx.Batch{}
	for _, mc := range cycles {
		batch.Queue(
			`INSERT INTO microcycles (id, program_id, sequence, start_date, length_days, status,
			 is_deload, generation_status, bias_notes)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			mc.ID, mc.ProgramID, mc.Sequence, mc.StartDate, mc.LengthDays, mc.Status,
			mc.IsDeload, mc.GenerationStatus, mc.BiasNotes)
		for i := range mc.Sessions {
			s := &mc.Sessions[i]
			content, err := encodeContent(s)
			if err != nil {
				return fmt.Errorf("encoding session content: %w", err)
			}
			batch.Queue(
				`INSERT INTO sessions (id, microcycle_id, day_number, date, session_type, patterns, tags,
				 generation_status, estimated_minutes, coach_notes, content)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				s.ID, s.MicrocycleID, s.DayNumber, s.Date, s.Type, nonNil(s.Patterns), nonNil(s.Tags),
				s.GenerationStatus, s.EstimatedMinutes, s.CoachNotes, content)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting skeleton: %w", err)
	}
	return tx.Commit(ctx)
}

// GetProgram returns one program.
func (db *DB) GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	return getProgram(ctx, db.Pool, id)
}

func getProgram(ctx context.Context, q querier, id uuid.UUID) (*models.Program, error) {
	var p models.Program
	var goals, prefs, rules []byte
	err := q.QueryRow(ctx,
		`SELECT id, name, duration_weeks, goals, days_per_week, max_session_minutes, deload_every,
		 preferred_cycle_length, start_date, preferences, rules, created_at
		 FROM programs WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.DurationWeeks, &goals, &p.DaysPerWeek, &p.MaxSessionMinutes, &p.DeloadEvery,
		&p.PreferredCycleLength, &p.StartDate, &prefs, &rules, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "program")
	}
	if err := json.Unmarshal(goals, &p.Goals); err != nil {
		return nil, fmt.Errorf("decoding goals: %w", err)
	}
	if err := json.Unmarshal(prefs, &p.Preferences); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	if err := json.Unmarshal(rules, &p.Rules); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	return &p, nil
}

const microcycleColumns = `id, program_id, sequence, start_date, length_days, status, is_deload,
	generation_status, bias_notes`

func scanMicrocycle(row pgx.Row) (models.Microcycle, error) {
	var mc models.Microcycle
	err := row.Scan(&mc.ID, &mc.ProgramID, &mc.Sequence, &mc.StartDate, &mc.LengthDays, &mc.Status,
		&mc.IsDeload, &mc.GenerationStatus, &mc.BiasNotes)
	return mc, err
}

// ListMicrocycles returns a program's microcycles in sequence order, without sessions.
func (db *DB) ListMicrocycles(ctx context.Context, programID uuid.UUID) ([]models.Microcycle, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+microcycleColumns+` FROM microcycles WHERE program_id = $1 ORDER BY sequence`, programID)
	if err != nil {
		return nil, fmt.Errorf("querying microcycles: %w", err)
	}
	defer rows.Close()

	var out []models.Microcycle
	for rows.Next() {
		mc, err := scanMicrocycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning microcycle: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// GetMicrocycle returns a microcycle with its sessions.
func (db *DB) GetMicrocycle(ctx context.Context, id uuid.UUID) (*models.Microcycle, error) {
	return getMicrocycle(ctx, db.Pool, id)
}

func getMicrocycle(ctx context.Context, q querier, id uuid.UUID) (*models.Microcycle, error) {
	mc, err := scanMicrocycle(q.QueryRow(ctx,
		`SELECT `+microcycleColumns+` FROM microcycles WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "microcycle")
	}
	sessions, err := listSessions(ctx, q, id)
	if err != nil {
		return nil, err
	}
	mc.Sessions = sessions
	return &mc, nil
}

const sessionColumns = `id, microcycle_id, day_number, date, session_type, patterns, tags,
	generation_status, estimated_minutes, coach_notes, content`

func scanSession(row pgx.Row) (models.Session, error) {
	var s models.Session
	var content []byte
	err := row.Scan(&s.ID, &s.MicrocycleID, &s.DayNumber, &s.Date, &s.Type, &s.Patterns, &s.Tags,
		&s.GenerationStatus, &s.EstimatedMinutes, &s.CoachNotes, &content)
	if err != nil {
		return s, err
	}
	if err := decodeContent(content, &s); err != nil {
		return s, fmt.Errorf("decoding session content: %w", err)
	}
	return s, nil
}

func listSessions(ctx context.Context, q querier, microcycleID uuid.UUID) ([]models.Session, error) {
	rows, err := q.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE microcycle_id = $1 ORDER BY day_number`, microcycleID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSession returns one session with its content.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(db.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "session")
	}
	return &s, nil
}

// SetCycleStatuses updates several microcycle statuses atomically.
func (db *DB) SetCycleStatuses(ctx context.Context, statuses map[uuid.UUID]models.CycleStatus) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for id, status := range statuses {
		tag, err := tx.Exec(ctx,
			`UPDATE microcycles SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
		if err != nil {
			return fmt.Errorf("updating microcycle status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("microcycle %s: %w", id, ErrNotFound)
		}
	}
	return tx.Commit(ctx)
}

// EligibleMicrocycles returns microcycles whose generation can start: still
// PENDING, the previous microcycle of the program finished generating, and
// no job queued or running for them.
func (db *DB) EligibleMicrocycles(ctx context.Context) ([]models.Microcycle, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT m.id, m.program_id, m.sequence, m.start_date, m.length_days, m.status, m.is_deload,
		       m.generation_status, m.bias_notes
		FROM microcycles m
		LEFT JOIN microcycles prev
		       ON prev.program_id = m.program_id AND prev.sequence = m.sequence - 1
		WHERE m.generation_status = 'PENDING'
		  AND m.status <> 'COMPLETE'
		  AND (prev.id IS NULL OR prev.generation_status IN ('COMPLETED', 'FAILED'))
		  AND NOT EXISTS (
		      SELECT 1 FROM jobs j
		      WHERE j.microcycle_id = m.id AND j.status IN ('queued', 'running'))
		ORDER BY m.program_id, m.sequence`)
	if err != nil {
		return nil, fmt.Errorf("querying eligible microcycles: %w", err)
	}
	defer rows.Close()

	var out []models.Microcycle
	for rows.Next() {
		mc, err := scanMicrocycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning microcycle: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// SessionRefs resolves sessions to their microcycle and program.
func (db *DB) SessionRefs(ctx context.Context, ids []uuid.UUID) ([]models.SessionRef, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT s.id, s.microcycle_id, m.program_id
		FROM sessions s JOIN microcycles m ON m.id = s.microcycle_id
		WHERE s.id = ANY($1::uuid[])
		ORDER BY m.program_id, m.sequence, s.day_number`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("querying session refs: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRef
	for rows.Next() {
		var r models.SessionRef
		if err := rows.Scan(&r.SessionID, &r.MicrocycleID, &r.ProgramID); err != nil {
			return nil, fmt.Errorf("scanning session ref: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkSessionsFailed flags sessions for remediation and appends a note.
func (db *DB) MarkSessionsFailed(ctx context.Context, ids []uuid.UUID, note string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE sessions
		SET generation_status = 'FAILED',
		    coach_notes = CASE WHEN coach_notes = '' THEN $2 ELSE coach_notes || E'\n' || $2 END,
		    updated_at = NOW()
		WHERE id = ANY($1::uuid[])`, uuidStrings(ids), note)
	if err != nil {
		return 0, fmt.Errorf("marking sessions failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
