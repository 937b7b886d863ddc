package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/sequencer"
)

// Memory is an in-process store with the same behavior as DB. The offline
// CLI uses it, and so do tests that need a store without Postgres.
type Memory struct {
	mu       sync.Mutex
	programs map[uuid.UUID]*models.Program
	cycles   map[uuid.UUID]*models.Microcycle // sessions kept separately
	sessions map[uuid.UUID]*models.Session
	byCycle  map[uuid.UUID][]uuid.UUID
	jobs     []*models.Job
}

var _ sequencer.Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		programs: map[uuid.UUID]*models.Program{},
		cycles:   map[uuid.UUID]*models.Microcycle{},
		sessions: map[uuid.UUID]*models.Session{},
		byCycle:  map[uuid.UUID][]uuid.UUID{},
	}
}

func (m *Memory) CreateProgram(_ context.Context, p *models.Program, cycles []models.Microcycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.programs[p.ID]; ok {
		return fmt.Errorf("program %s already exists", p.ID)
	}
	m.programs[p.ID] = cloneProgram(p)
	for i := range cycles {
		mc := cycles[i]
		sessions := mc.Sessions
		mc.Sessions = nil
		m.cycles[mc.ID] = &mc
		ids := make([]uuid.UUID, 0, len(sessions))
		for j := range sessions {
			s := cloneSession(&sessions[j])
			m.sessions[s.ID] = s
			ids = append(ids, s.ID)
		}
		m.byCycle[mc.ID] = ids
	}
	return nil
}

func (m *Memory) GetProgram(_ context.Context, id uuid.UUID) (*models.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.programs[id]
	if !ok {
		return nil, fmt.Errorf("program: %w", ErrNotFound)
	}
	return cloneProgram(p), nil
}

func (m *Memory) ListMicrocycles(_ context.Context, programID uuid.UUID) ([]models.Microcycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCycles(programID), nil
}

func (m *Memory) listCycles(programID uuid.UUID) []models.Microcycle {
	var out []models.Microcycle
	for _, mc := range m.cycles {
		if mc.ProgramID == programID {
			out = append(out, *mc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (m *Memory) GetMicrocycle(_ context.Context, id uuid.UUID) (*models.Microcycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.microcycle(id)
}

// microcycle returns a copy with sessions in day order. Callers hold mu.
func (m *Memory) microcycle(id uuid.UUID) (*models.Microcycle, error) {
	mc, ok := m.cycles[id]
	if !ok {
		return nil, fmt.Errorf("microcycle: %w", ErrNotFound)
	}
	out := *mc
	for _, sid := range m.byCycle[id] {
		out.Sessions = append(out.Sessions, *cloneSession(m.sessions[sid]))
	}
	sort.Slice(out.Sessions, func(i, j int) bool { return out.Sessions[i].DayNumber < out.Sessions[j].DayNumber })
	return &out, nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	return cloneSession(s), nil
}

func (m *Memory) SetCycleStatuses(_ context.Context, statuses map[uuid.UUID]models.CycleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range statuses {
		if _, ok := m.cycles[id]; !ok {
			return fmt.Errorf("microcycle %s: %w", id, ErrNotFound)
		}
	}
	for id, status := range statuses {
		m.cycles[id].Status = status
	}
	return nil
}

func (m *Memory) EligibleMicrocycles(_ context.Context) ([]models.Microcycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Microcycle
	for _, mc := range m.cycles {
		if mc.GenerationStatus != models.GenPending || mc.Status == models.CycleComplete {
			continue
		}
		if !m.previousTerminal(mc) || m.hasOpenJob(mc.ID) {
			continue
		}
		out = append(out, *mc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProgramID != out[j].ProgramID {
			return out[i].ProgramID.String() < out[j].ProgramID.String()
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

// previousTerminal reports whether the microcycle before mc finished
// generating, or does not exist. Callers hold mu.
func (m *Memory) previousTerminal(mc *models.Microcycle) bool {
	for _, other := range m.cycles {
		if other.ProgramID == mc.ProgramID && other.Sequence == mc.Sequence-1 {
			return other.GenerationStatus.Terminal()
		}
	}
	return true
}

func (m *Memory) hasOpenJob(microcycleID uuid.UUID) bool {
	for _, j := range m.jobs {
		if j.MicrocycleID == microcycleID && (j.Status == models.JobQueued || j.Status == models.JobRunning) {
			return true
		}
	}
	return false
}

func (m *Memory) SessionRefs(_ context.Context, ids []uuid.UUID) ([]models.SessionRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type ordered struct {
		ref models.SessionRef
		seq int
		day int
	}
	var refs []ordered
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		s, ok := m.sessions[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		mc := m.cycles[s.MicrocycleID]
		refs = append(refs, ordered{
			ref: models.SessionRef{SessionID: id, MicrocycleID: mc.ID, ProgramID: mc.ProgramID},
			seq: mc.Sequence,
			day: s.DayNumber,
		})
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.ref.ProgramID != b.ref.ProgramID {
			return a.ref.ProgramID.String() < b.ref.ProgramID.String()
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.day < b.day
	})
	out := make([]models.SessionRef, len(refs))
	for i, r := range refs {
		out[i] = r.ref
	}
	return out, nil
}

func (m *Memory) MarkSessionsFailed(_ context.Context, ids []uuid.UUID, note string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		s, ok := m.sessions[id]
		if !ok {
			continue
		}
		s.GenerationStatus = models.GenFailed
		s.AppendNote(note)
		n++
	}
	return n, nil
}

func (m *Memory) EnqueueJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cycles[job.MicrocycleID]; !ok {
		return fmt.Errorf("inserting job: microcycle %s: %w", job.MicrocycleID, ErrNotFound)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = models.JobQueued
	job.CreatedAt = time.Now().UTC()
	cp := *job
	m.jobs = append(m.jobs, &cp)
	return nil
}

// ClaimNextJob follows the same runnable rules as DB.ClaimNextJob.
func (m *Memory) ClaimNextJob(_ context.Context) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	running := map[uuid.UUID]bool{}
	for _, j := range m.jobs {
		if j.Status == models.JobRunning {
			running[j.MicrocycleID] = true
		}
	}
	for _, j := range m.jobs {
		if j.Status != models.JobQueued || running[j.MicrocycleID] {
			continue
		}
		if j.Kind == models.JobGenerateMicrocycle {
			mc, ok := m.cycles[j.MicrocycleID]
			if !ok || !m.previousTerminal(mc) {
				continue
			}
		}
		now := time.Now().UTC()
		j.Status = models.JobRunning
		j.Attempts++
		j.StartedAt = &now
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) FinishJob(_ context.Context, id uuid.UUID, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID != id {
			continue
		}
		now := time.Now().UTC()
		j.Status, j.Error, j.FinishedAt = models.JobDone, "", &now
		if runErr != nil {
			j.Status, j.Error = models.JobFailed, runErr.Error()
		}
		return nil
	}
	return fmt.Errorf("job %s: %w", id, ErrNotFound)
}

func (m *Memory) RequeueStaleJobs(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.Status == models.JobRunning {
			j.Status, j.StartedAt = models.JobQueued, nil
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("job: %w", ErrNotFound)
}

// Jobs returns a copy of every job in enqueue order.
func (m *Memory) Jobs() []models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Job, len(m.jobs))
	for i, j := range m.jobs {
		out[i] = *j
	}
	return out
}

func (m *Memory) MicrocycleProgress(_ context.Context, id uuid.UUID) (sequencer.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, err := m.microcycle(id)
	if err != nil {
		return sequencer.Progress{MicrocycleID: id}, err
	}
	return cycleProgress(mc), nil
}

func (m *Memory) ProgramStatus(_ context.Context, programID uuid.UUID) (*ProgramStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[programID]; !ok {
		return nil, fmt.Errorf("program: %w", ErrNotFound)
	}
	out := &ProgramStatus{ProgramID: programID}
	for _, c := range m.listCycles(programID) {
		mc, err := m.microcycle(c.ID)
		if err != nil {
			return nil, err
		}
		out.Microcycles = append(out.Microcycles, CycleProgress{
			Sequence:    mc.Sequence,
			CycleStatus: mc.Status,
			IsDeload:    mc.IsDeload,
			Progress:    cycleProgress(mc),
		})
	}
	return out, nil
}

func cycleProgress(mc *models.Microcycle) sequencer.Progress {
	prog := sequencer.Progress{MicrocycleID: mc.ID, Status: mc.GenerationStatus}
	for _, s := range mc.Sessions {
		prog.Add(sessionStatus(s.ID, s.DayNumber, s.Type, s.GenerationStatus, s.CoachNotes))
	}
	return prog
}

// Begin opens a unit of work. Writes are staged and applied on Commit.
func (m *Memory) Begin(_ context.Context) (sequencer.UnitOfWork, error) {
	return &memoryTx{m: m}, nil
}

var errTxClosed = errors.New("unit of work already closed")

type memoryTx struct {
	m      *Memory
	staged []func()
	closed bool
}

func (t *memoryTx) LoadMicrocycle(_ context.Context, id uuid.UUID) (*models.Program, *models.Microcycle, error) {
	if t.closed {
		return nil, nil, errTxClosed
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	mc, err := t.m.microcycle(id)
	if err != nil {
		return nil, nil, err
	}
	p, ok := t.m.programs[mc.ProgramID]
	if !ok {
		return nil, nil, fmt.Errorf("program: %w", ErrNotFound)
	}
	return cloneProgram(p), mc, nil
}

func (t *memoryTx) SetMicrocycleStatus(_ context.Context, id uuid.UUID, status models.GenerationStatus) error {
	if t.closed {
		return errTxClosed
	}
	t.m.mu.Lock()
	_, ok := t.m.cycles[id]
	t.m.mu.Unlock()
	if !ok {
		return fmt.Errorf("microcycle %s: %w", id, ErrNotFound)
	}
	t.staged = append(t.staged, func() { t.m.cycles[id].GenerationStatus = status })
	return nil
}

func (t *memoryTx) SetSessionStatus(_ context.Context, id uuid.UUID, status models.GenerationStatus) error {
	if t.closed {
		return errTxClosed
	}
	t.m.mu.Lock()
	_, ok := t.m.sessions[id]
	t.m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	t.staged = append(t.staged, func() { t.m.sessions[id].GenerationStatus = status })
	return nil
}

func (t *memoryTx) SaveSession(_ context.Context, s *models.Session) error {
	if t.closed {
		return errTxClosed
	}
	t.m.mu.Lock()
	_, ok := t.m.sessions[s.ID]
	t.m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID, ErrNotFound)
	}
	cp := cloneSession(s)
	t.staged = append(t.staged, func() { t.m.sessions[cp.ID] = cp })
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.closed {
		return errTxClosed
	}
	t.closed = true
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, apply := range t.staged {
		apply()
	}
	t.staged = nil
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	t.closed = true
	t.staged = nil
	return nil
}

func cloneProgram(p *models.Program) *models.Program {
	cp := *p
	cp.Goals = append(models.GoalWeights(nil), p.Goals...)
	cp.Rules = models.MovementRules{
		Required:  append([]string(nil), p.Rules.Required...),
		Excluded:  append([]string(nil), p.Rules.Excluded...),
		Preferred: append([]string(nil), p.Rules.Preferred...),
	}
	return &cp
}

func cloneSession(s *models.Session) *models.Session {
	cp := *s
	cp.Patterns = append([]string(nil), s.Patterns...)
	cp.Tags = append([]string(nil), s.Tags...)
	cp.Warmup = cloneAssignments(s.Warmup)
	cp.Main = cloneAssignments(s.Main)
	cp.Accessory = cloneAssignments(s.Accessory)
	cp.Cooldown = cloneAssignments(s.Cooldown)
	if s.Finisher != nil {
		f := *s.Finisher
		f.Exercises = cloneAssignments(s.Finisher.Exercises)
		cp.Finisher = &f
	}
	return &cp
}

func cloneAssignments(in []models.ExerciseAssignment) []models.ExerciseAssignment {
	if in == nil {
		return nil
	}
	return append([]models.ExerciseAssignment(nil), in...)
}
