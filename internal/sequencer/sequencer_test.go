package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/assembly"
	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that counts open units of work.
type memStore struct {
	mu       sync.Mutex
	program  models.Program
	mc       models.Microcycle
	sessions map[uuid.UUID]models.Session
	open     int
}

func (m *memStore) Begin(context.Context) (UnitOfWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open++
	return &memUoW{m: m}, nil
}

func (m *memStore) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *memStore) session(day int) models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.DayNumber == day {
			return s
		}
	}
	return models.Session{}
}

func (m *memStore) all() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

type memUoW struct {
	m    *memStore
	done bool
}

func (u *memUoW) LoadMicrocycle(_ context.Context, id uuid.UUID) (*models.Program, *models.Microcycle, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if id != u.m.mc.ID {
		return nil, nil, errors.New("microcycle not found")
	}
	p := u.m.program
	mc := u.m.mc
	mc.Sessions = nil
	// Map iteration order leaves the sessions unsorted.
	for _, s := range u.m.sessions {
		mc.Sessions = append(mc.Sessions, s)
	}
	return &p, &mc, nil
}

func (u *memUoW) SetMicrocycleStatus(_ context.Context, _ uuid.UUID, status models.GenerationStatus) error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	u.m.mc.GenerationStatus = status
	return nil
}

func (u *memUoW) SetSessionStatus(_ context.Context, id uuid.UUID, status models.GenerationStatus) error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	s := u.m.sessions[id]
	s.GenerationStatus = status
	u.m.sessions[id] = s
	return nil
}

func (u *memUoW) SaveSession(_ context.Context, s *models.Session) error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	u.m.sessions[s.ID] = *s
	return nil
}

func (u *memUoW) Commit(context.Context) error   { return u.close() }
func (u *memUoW) Rollback(context.Context) error { return u.close() }

func (u *memUoW) close() error {
	if u.done {
		return nil
	}
	u.done = true
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	u.m.open--
	return nil
}

// scripted wraps the real assembler, recording inputs and injecting failures.
type scripted struct {
	inner   Assembler
	store   *memStore
	fail    map[int]error
	block   map[int]bool
	panicOn map[int]bool

	days       []int
	inputs     map[int]assembly.Input
	openDuring []int
}

func (f *scripted) Assemble(ctx context.Context, s *models.Session, in assembly.Input) (assembly.Outcome, error) {
	f.days = append(f.days, s.DayNumber)
	f.inputs[s.DayNumber] = in
	f.openDuring = append(f.openDuring, f.store.openCount())
	if f.panicOn[s.DayNumber] {
		panic("boom")
	}
	if err := f.fail[s.DayNumber]; err != nil {
		return assembly.Outcome{}, err
	}
	if f.block[s.DayNumber] {
		<-ctx.Done()
		return assembly.Outcome{}, ctx.Err()
	}
	return f.inner.Assemble(ctx, s, in)
}

type dayPlan struct {
	t        models.SessionType
	patterns []string
}

// weekPlan is seven days with a rest day, a repeated lower day and a cardio day.
var weekPlan = []dayPlan{
	{models.SessionUpper, []string{models.PatternHorizontalPush, models.PatternHorizontalPull}},
	{models.SessionLower, []string{models.PatternSquat, models.PatternHinge}},
	{models.SessionRecovery, nil},
	{models.SessionUpper, []string{models.PatternVerticalPush, models.PatternVerticalPull}},
	{models.SessionLower, []string{models.PatternLunge, models.PatternHinge}},
	{models.SessionFullBody, []string{models.PatternSquat, models.PatternHorizontalPush, models.PatternHorizontalPull}},
	{models.SessionCardio, []string{models.PatternCardio}},
}

func newStore(plan []dayPlan) *memStore {
	program := models.Program{
		ID:                uuid.New(),
		DurationWeeks:     8,
		Goals:             models.GoalWeights{{Goal: models.GoalStrength, Weight: 1}},
		DaysPerWeek:       5,
		MaxSessionMinutes: 75,
	}
	mc := models.Microcycle{
		ID:               uuid.New(),
		ProgramID:        program.ID,
		Sequence:         1,
		LengthDays:       len(plan),
		Status:           models.CycleActive,
		GenerationStatus: models.GenPending,
	}
	st := &memStore{program: program, mc: mc, sessions: map[uuid.UUID]models.Session{}}
	for i, d := range plan {
		s := models.Session{
			ID:               uuid.New(),
			MicrocycleID:     mc.ID,
			DayNumber:        i + 1,
			Type:             d.t,
			Patterns:         append([]string(nil), d.patterns...),
			GenerationStatus: models.GenPending,
		}
		st.sessions[s.ID] = s
	}
	return st
}

func newSequencer(t *testing.T, store *memStore, cfg config.Snapshot) (*Sequencer, *scripted) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	f := &scripted{
		inner:   assembly.New(cat, optimizer.Disabled{}, cfg, slog.Default()),
		store:   store,
		fail:    map[int]error{},
		block:   map[int]bool{},
		panicOn: map[int]bool{},
		inputs:  map[int]assembly.Input{},
	}
	return New(store, f, cat, cfg, nil, slog.Default()), f
}

// TestRunCompletesInDayOrder verifies sessions run in ascending day order and all complete.
func TestRunCompletesInDayOrder(t *testing.T) {
	store := newStore(weekPlan)
	seq, f := newSequencer(t, store, config.DefaultSnapshot())

	prog, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, f.days)
	assert.Equal(t, 7, prog.Total)
	assert.Equal(t, 7, prog.Completed)
	assert.Zero(t, prog.Failed)
	assert.Equal(t, models.GenCompleted, prog.Status)
	assert.Equal(t, models.GenCompleted, store.mc.GenerationStatus)

	for _, s := range store.all() {
		assert.Equal(t, models.GenCompleted, s.GenerationStatus, "day %d", s.DayNumber)
		if s.IsLifting() {
			assert.NotEmpty(t, s.Main, "day %d", s.DayNumber)
		}
	}
	day3 := store.session(3)
	assert.Empty(t, day3.Assignments())
}

// TestRunNeverHoldsUnitOfWorkDuringAssembly verifies checkpoints close before assembly starts.
func TestRunNeverHoldsUnitOfWorkDuringAssembly(t *testing.T) {
	store := newStore(weekPlan)
	seq, f := newSequencer(t, store, config.DefaultSnapshot())

	_, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)
	for i, open := range f.openDuring {
		assert.Zero(t, open, "call %d", i)
	}
	assert.Zero(t, store.openCount())
}

// TestRunIsolatesFailures verifies one failing session does not stop the others.
func TestRunIsolatesFailures(t *testing.T) {
	store := newStore(weekPlan)
	seq, f := newSequencer(t, store, config.DefaultSnapshot())
	f.fail[5] = errors.New("optimizer exploded")

	prog, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 7, prog.Total)
	assert.Equal(t, 6, prog.Completed)
	assert.Equal(t, 1, prog.Failed)
	assert.Equal(t, models.GenFailed, prog.Status)
	assert.Equal(t, models.GenFailed, store.mc.GenerationStatus)

	failed := store.session(5)
	assert.Equal(t, models.GenFailed, failed.GenerationStatus)
	assert.Contains(t, failed.CoachNotes, "optimizer exploded")
	assert.Empty(t, failed.Main)
	assert.Equal(t, models.GenCompleted, store.session(6).GenerationStatus)
	assert.Equal(t, models.GenCompleted, store.session(7).GenerationStatus)
}

// TestRunTimeoutAndPanic verifies timeouts and panics fail only their session.
func TestRunTimeoutAndPanic(t *testing.T) {
	store := newStore(weekPlan)
	seq, f := newSequencer(t, store, config.DefaultSnapshot().WithSessionTimeout(20*time.Millisecond))
	f.block[2] = true
	f.panicOn[4] = true

	prog, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, prog.Completed)
	assert.Equal(t, 2, prog.Failed)
	assert.Contains(t, store.session(2).CoachNotes, "timed out")
	assert.Contains(t, store.session(4).CoachNotes, "panic")
}

// TestRunCarriesFatigue verifies volume carries to the next day and resets after rest and failures.
func TestRunCarriesFatigue(t *testing.T) {
	store := newStore(weekPlan)
	seq, f := newSequencer(t, store, config.DefaultSnapshot())
	f.fail[5] = errors.New("boom")

	_, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)

	assert.Nil(t, f.inputs[1].PreviousDayVolume)
	assert.NotEmpty(t, f.inputs[2].PreviousDayVolume)
	assert.Empty(t, f.inputs[4].PreviousDayVolume, "rest day resets volume")
	assert.Empty(t, f.inputs[6].PreviousDayVolume, "failed day resets volume")

	// Day 4 compares against day 2, the closest earlier training day.
	day2 := store.session(2)
	assert.Equal(t, day2.AccessoryNames(), f.inputs[4].PreviousAccessories)
}

// TestRunKeepsMovementsDistinct verifies the microcycle diversity state reaches later sessions.
func TestRunKeepsMovementsDistinct(t *testing.T) {
	store := newStore(weekPlan)
	seq, _ := newSequencer(t, store, config.DefaultSnapshot())

	_, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, s := range store.all() {
		for _, a := range s.Main {
			seen[catalog.Key(a.Movement)]++
		}
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, "main movement %q used on %d days", name, n)
	}
}

// TestRunAppliesInterference verifies a repeated main pattern is swapped before assembly.
func TestRunAppliesInterference(t *testing.T) {
	store := newStore([]dayPlan{
		{models.SessionLower, []string{models.PatternSquat, models.PatternHinge}},
		{models.SessionLower, []string{models.PatternSquat, models.PatternHinge}},
	})
	seq, _ := newSequencer(t, store, config.DefaultSnapshot())

	_, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)
	day2 := store.session(2)
	assert.Equal(t, []string{models.PatternLunge, models.PatternHinge}, day2.Patterns)
	assert.Contains(t, day2.CoachNotes, "Swapped squat for lunge")
}

// TestRunRegeneratesSelectedSessions verifies a seeded rerun touches only the requested sessions.
func TestRunRegeneratesSelectedSessions(t *testing.T) {
	store := newStore(weekPlan)
	seq, f := newSequencer(t, store, config.DefaultSnapshot())
	f.fail[5] = errors.New("boom")
	_, err := seq.Run(context.Background(), store.mc.ID, RunOptions{})
	require.NoError(t, err)

	delete(f.fail, 5)
	f.days = nil
	cat, err := catalog.Default()
	require.NoError(t, err)
	st, err := SeedState(context.Background(), cat, store.all())
	require.NoError(t, err)

	target := store.session(5)
	prog, err := seq.Run(context.Background(), store.mc.ID, RunOptions{
		SessionIDs: []uuid.UUID{target.ID},
		State:      st,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, f.days)
	assert.Equal(t, 1, prog.Total)
	assert.Equal(t, 1, prog.Completed)
	assert.Equal(t, models.GenCompleted, prog.Status)
	assert.Equal(t, models.GenCompleted, store.session(5).GenerationStatus)

	// Day 2's squat is still excluded on regeneration.
	day2Main := store.session(2).Main[0].Movement
	assert.True(t, f.inputs[5].UsedMovements[catalog.Key(day2Main)])
}

// TestRunUnknownMicrocycle verifies a failed read is reported to the caller.
func TestRunUnknownMicrocycle(t *testing.T) {
	store := newStore(weekPlan)
	seq, _ := newSequencer(t, store, config.DefaultSnapshot())

	_, err := seq.Run(context.Background(), uuid.New(), RunOptions{})
	require.Error(t, err)
	assert.Zero(t, store.openCount())
}

// TestSeedStateWeights verifies role and secondary-muscle weighting of the volume map.
func TestSeedStateWeights(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	sessions := []models.Session{
		{
			DayNumber:        1,
			Type:             models.SessionUpper,
			Patterns:         []string{models.PatternHorizontalPush, models.PatternHorizontalPull},
			GenerationStatus: models.GenCompleted,
			Main:             []models.ExerciseAssignment{{Role: models.RoleMain, Movement: "Bench Press"}},
			Accessory:        []models.ExerciseAssignment{{Role: models.RoleAccessory, Movement: "Face Pull"}},
		},
		{DayNumber: 2, Type: models.SessionRecovery, GenerationStatus: models.GenCompleted},
		{
			DayNumber:        3,
			Type:             models.SessionUpper,
			GenerationStatus: models.GenFailed,
			Main:             []models.ExerciseAssignment{{Role: models.RoleMain, Movement: "Pull-Up"}},
		},
	}

	st, err := SeedState(context.Background(), cat, sessions)
	require.NoError(t, err)

	assert.True(t, st.UsedMovements["bench press"])
	assert.True(t, st.UsedMovements["face pull"])
	assert.False(t, st.UsedMovements["pull-up"], "failed sessions are not seeded")
	assert.Equal(t, 1, st.UsedGroups["press_horizontal"])
	assert.Equal(t, []string{models.PatternHorizontalPush, models.PatternHorizontalPull}, st.UsedMainPatterns[1])
	assert.Equal(t, []string{"Face Pull"}, st.PreviousAccessories(3))

	vol := st.Volume[1]
	assert.InDelta(t, 3.0, vol["chest"], 0.001)
	assert.InDelta(t, 1.5, vol["triceps"], 0.001)
	assert.InDelta(t, 2.0, vol["rear_delts"], 0.001)
	assert.InDelta(t, 1.0, vol["upper_back"], 0.001)
	assert.Empty(t, st.PreviousDayVolume(3))
}
