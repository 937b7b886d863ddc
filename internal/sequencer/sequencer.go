// Package sequencer generates the content of one microcycle's sessions in
// day order, carrying diversity and fatigue state from each session to the
// next and isolating per-session failures.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/assembly"
	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/interference"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/progress"
)

// UnitOfWork is one persistence checkpoint. It is opened just before the
// checkpoint and committed or rolled back right after; the sequencer never
// holds one across session assembly.
type UnitOfWork interface {
	LoadMicrocycle(ctx context.Context, id uuid.UUID) (*models.Program, *models.Microcycle, error)
	SetMicrocycleStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus) error
	SetSessionStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus) error
	SaveSession(ctx context.Context, s *models.Session) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens units of work.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Assembler fills one session. Implementations must return promptly once ctx
// is done; the per-session timeout is enforced only through ctx.
type Assembler interface {
	Assemble(ctx context.Context, s *models.Session, in assembly.Input) (assembly.Outcome, error)
}

var _ Assembler = (*assembly.Assembler)(nil)

// SessionStatus is one entry of the progress record.
type SessionStatus struct {
	SessionID uuid.UUID               `json:"session_id"`
	Day       int                     `json:"day"`
	Type      models.SessionType      `json:"type"`
	Status    models.GenerationStatus `json:"status"`
	Note      string                  `json:"note,omitempty"`
}

// Progress aggregates a microcycle's generation state for polling.
type Progress struct {
	MicrocycleID uuid.UUID               `json:"microcycle_id"`
	Status       models.GenerationStatus `json:"status"`
	Total        int                     `json:"total"`
	Pending      int                     `json:"pending"`
	Completed    int                     `json:"completed"`
	Failed       int                     `json:"failed"`
	Current      int                     `json:"current,omitempty"` // day being generated, 0 when idle
	Sessions     []SessionStatus         `json:"sessions"`
}

// Add counts one session.
func (p *Progress) Add(s SessionStatus) {
	p.Total++
	switch s.Status {
	case models.GenCompleted:
		p.Completed++
	case models.GenFailed:
		p.Failed++
	case models.GenInProgress:
		p.Current = s.Day
	default:
		p.Pending++
	}
	p.Sessions = append(p.Sessions, s)
}

// RunOptions narrows a run.
type RunOptions struct {
	// SessionIDs limits generation to these sessions; empty means all.
	SessionIDs []uuid.UUID
	// State pre-seeds the bookkeeping, see SeedState.
	State *State
}

// Sequencer drives generation for one microcycle at a time. A Sequencer may
// run several microcycles concurrently; each Run owns its own State.
type Sequencer struct {
	store     Store
	assembler Assembler
	catalog   catalog.Catalog
	cfg       config.Snapshot
	publisher progress.Publisher
	log       *slog.Logger
}

// New creates a Sequencer. A nil publisher drops progress events.
func New(store Store, asm Assembler, cat catalog.Catalog, cfg config.Snapshot, pub progress.Publisher, log *slog.Logger) *Sequencer {
	if pub == nil {
		pub = progress.Nop{}
	}
	return &Sequencer{
		store:     store,
		assembler: asm,
		catalog:   cat,
		cfg:       cfg,
		publisher: pub,
		log:       log,
	}
}

// Run generates the sessions of a microcycle. The returned error covers only
// reading the microcycle and the status checkpoints around the run; session
// failures are recorded on the sessions and in the progress record.
func (q *Sequencer) Run(ctx context.Context, microcycleID uuid.UUID, opts RunOptions) (Progress, error) {
	prog := Progress{MicrocycleID: microcycleID, Status: models.GenInProgress}

	var program *models.Program
	var mc *models.Microcycle
	err := q.checkpoint(ctx, func(uow UnitOfWork) error {
		var err error
		program, mc, err = uow.LoadMicrocycle(ctx, microcycleID)
		if err != nil {
			return err
		}
		return uow.SetMicrocycleStatus(ctx, microcycleID, models.GenInProgress)
	})
	if err != nil {
		return prog, fmt.Errorf("starting microcycle %s: %w", microcycleID, err)
	}

	log := q.log.With("program_id", program.ID, "microcycle_id", mc.ID, "sequence", mc.Sequence)
	st := opts.State
	if st == nil {
		st = NewState()
	}
	engine := interference.New(st.UsedMainPatterns, log)

	sessions := mc.Sessions
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].DayNumber < sessions[j].DayNumber })
	targets := targetSet(opts.SessionIDs)

	log.Info("microcycle generation started", "sessions", len(sessions), "targets", len(opts.SessionIDs))
	for i := range sessions {
		s := &sessions[i]
		if targets != nil && !targets[s.ID] {
			continue
		}
		status := q.runSession(ctx, log, program, mc, s, st, engine)
		prog.Add(status)
		q.publish(ctx, log, progress.Event{
			ProgramID:    program.ID,
			MicrocycleID: mc.ID,
			SessionID:    s.ID,
			Day:          s.DayNumber,
			Status:       string(status.Status),
			Total:        len(sessions),
			Completed:    prog.Completed,
			Failed:       prog.Failed,
			Error:        status.Note,
		})
	}

	// A regeneration run leaves other sessions untouched; their state still counts.
	final := models.GenCompleted
	for _, s := range sessions {
		if s.GenerationStatus == models.GenFailed {
			final = models.GenFailed
		}
	}
	prog.Status = final
	prog.Current = 0

	err = q.checkpoint(ctx, func(uow UnitOfWork) error {
		return uow.SetMicrocycleStatus(ctx, mc.ID, final)
	})
	if err != nil {
		return prog, fmt.Errorf("finishing microcycle %s: %w", mc.ID, err)
	}
	q.publish(ctx, log, progress.Event{
		ProgramID:    program.ID,
		MicrocycleID: mc.ID,
		Status:       string(final),
		Total:        len(sessions),
		Completed:    prog.Completed,
		Failed:       prog.Failed,
	})
	log.Info("microcycle generation finished",
		"status", final,
		"completed", prog.Completed,
		"failed", prog.Failed,
	)
	return prog, nil
}

// runSession takes one session from IN_PROGRESS to COMPLETED or FAILED.
func (q *Sequencer) runSession(ctx context.Context, log *slog.Logger, program *models.Program, mc *models.Microcycle,
	s *models.Session, st *State, engine *interference.Engine) SessionStatus {
	log = log.With("session_day", s.DayNumber, "session_type", s.Type)

	err := q.checkpoint(ctx, func(uow UnitOfWork) error {
		return uow.SetSessionStatus(ctx, s.ID, models.GenInProgress)
	})
	if err != nil {
		log.Error("marking session in progress", "error", err)
	}
	s.GenerationStatus = models.GenInProgress
	// Notes describe the current content; earlier failure and admin notes go.
	s.CoachNotes = ""

	engine.Apply(s)

	in := assembly.Input{
		Goals:               program.Goals,
		MaxSessionMinutes:   program.MaxSessionMinutes,
		Rules:               program.Rules,
		Deload:              mc.IsDeload,
		UsedMovements:       st.UsedMovements,
		UsedGroups:          st.UsedGroups,
		PreviousAccessories: st.PreviousAccessories(s.DayNumber),
		PreviousDayVolume:   st.PreviousDayVolume(s.DayNumber),
	}

	start := time.Now()
	out, err := q.assemble(ctx, s, in)
	if err == nil {
		var movements map[string]models.Movement
		movements, err = q.catalog.Lookup(ctx, s.MovementNames())
		if err == nil {
			st.Record(s, movements)
		}
	}

	if err != nil {
		s.ClearContent()
		s.GenerationStatus = models.GenFailed
		s.AppendNote(failureNote(err, q.cfg.SessionTimeout()))
		st.ResetVolume(s.DayNumber)
		log.Warn("session generation failed", "error", err, "elapsed", time.Since(start))
	} else {
		s.GenerationStatus = models.GenCompleted
		log.Debug("session generated",
			"source", out.Source,
			"optimizer_status", out.OptimizerStatus,
			"minutes", s.EstimatedMinutes,
			"replacements", len(out.Replacements),
			"elapsed", time.Since(start),
		)
	}

	err = q.checkpoint(ctx, func(uow UnitOfWork) error {
		return uow.SaveSession(ctx, s)
	})
	if err != nil {
		log.Error("saving session", "error", err)
		s.GenerationStatus = models.GenFailed
		return SessionStatus{SessionID: s.ID, Day: s.DayNumber, Type: s.Type, Status: models.GenFailed, Note: "could not save session: " + err.Error()}
	}

	status := SessionStatus{SessionID: s.ID, Day: s.DayNumber, Type: s.Type, Status: s.GenerationStatus}
	if s.GenerationStatus == models.GenFailed {
		status.Note = s.CoachNotes
	}
	return status
}

// assemble runs the assembler under the per-session timeout. A panic fails
// the session, not the run.
func (q *Sequencer) assemble(ctx context.Context, s *models.Session, in assembly.Input) (out assembly.Outcome, err error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.SessionTimeout())
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assembler panic: %v", r)
		}
	}()
	return q.assembler.Assemble(ctx, s, in)
}

// checkpoint runs fn inside a fresh unit of work.
func (q *Sequencer) checkpoint(ctx context.Context, fn func(UnitOfWork) error) error {
	uow, err := q.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning unit of work: %w", err)
	}
	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			q.log.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("committing unit of work: %w", err)
	}
	return nil
}

func (q *Sequencer) publish(ctx context.Context, log *slog.Logger, e progress.Event) {
	if err := q.publisher.Publish(ctx, e); err != nil {
		log.Warn("publishing progress", "error", err)
	}
}

func targetSet(ids []uuid.UUID) map[uuid.UUID]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func failureNote(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Generation timed out after %s. Regenerate this session.", timeout)
	}
	return fmt.Sprintf("Generation failed: %v. Regenerate this session.", err)
}
