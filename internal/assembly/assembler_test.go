package assembly

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssembler(t *testing.T, opt optimizer.Optimizer) *Assembler {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return New(cat, opt, config.DefaultSnapshot(), slog.Default())
}

func selecting(names ...string) optimizer.Optimizer {
	return optimizer.Func(func(context.Context, optimizer.Request) (optimizer.Result, error) {
		return optimizer.Result{Status: optimizer.StatusOptimal, Selected: names}, nil
	})
}

func upperSession() *models.Session {
	return &models.Session{
		DayNumber: 1,
		Type:      models.SessionUpper,
		Patterns:  []string{models.PatternHorizontalPush, models.PatternHorizontalPull},
	}
}

var strengthOnly = models.GoalWeights{{Goal: models.GoalStrength, Weight: 1}}

func assertUnique(t *testing.T, s *models.Session) {
	t.Helper()
	seen := map[string]bool{}
	for _, a := range s.Assignments() {
		k := catalog.Key(a.Movement)
		assert.False(t, seen[k], "movement %q appears twice", a.Movement)
		seen[k] = true
	}
}

func names(list []models.ExerciseAssignment) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Movement)
	}
	return out
}

// TestAssembleRecovery verifies rest days stay empty.
func TestAssembleRecovery(t *testing.T) {
	a := newAssembler(t, selecting("Bench Press"))
	s := &models.Session{Type: models.SessionRecovery}

	out, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, SourceRecovery, out.Source)
	assert.Empty(t, s.Assignments())
	assert.Zero(t, s.EstimatedMinutes)
}

// TestAssembleCardioTemplate verifies dedicated cardio days skip the optimizer.
func TestAssembleCardioTemplate(t *testing.T) {
	called := false
	opt := optimizer.Func(func(context.Context, optimizer.Request) (optimizer.Result, error) {
		called = true
		return optimizer.Result{}, nil
	})
	a := newAssembler(t, opt)
	s := &models.Session{Type: models.SessionCardio, Patterns: []string{models.PatternCardio}}

	out, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 60})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, SourceConditioning, out.Source)
	assert.Equal(t, []string{"Zone 2 Run", "Steady Bike"}, names(s.Main))
	assert.Empty(t, s.Accessory)
	assert.Nil(t, s.Finisher)
	assert.LessOrEqual(t, s.EstimatedMinutes, 60)
}

// TestAssembleAccessoryOrFinisher verifies exactly one of the two blocks survives.
func TestAssembleAccessoryOrFinisher(t *testing.T) {
	tests := []struct {
		name         string
		goals        models.GoalWeights
		tags         []string
		wantFinisher bool
	}{
		{"strength keeps accessories", strengthOnly, nil, false},
		{"fat loss gets a finisher", models.GoalWeights{{Goal: models.GoalFatLoss, Weight: 1}}, nil, true},
		{"tie goes to the finisher", models.GoalWeights{
			{Goal: models.GoalStrength, Weight: 1},
			{Goal: models.GoalEndurance, Weight: 1},
		}, nil, true},
		{"accessory tag wins", models.GoalWeights{{Goal: models.GoalFatLoss, Weight: 1}}, []string{models.TagPreferAccessory}, false},
		{"finisher tag wins", strengthOnly, []string{models.TagPreferFinisher}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssembler(t, optimizer.Disabled{})
			s := upperSession()
			s.Tags = tt.tags

			_, err := a.Assemble(context.Background(), s, Input{Goals: tt.goals, MaxSessionMinutes: 75})
			require.NoError(t, err)
			if tt.wantFinisher {
				require.NotNil(t, s.Finisher)
				assert.NotEmpty(t, s.Finisher.Exercises)
				assert.Empty(t, s.Accessory)
			} else {
				assert.Nil(t, s.Finisher)
				assert.NotEmpty(t, s.Accessory)
			}
			assertUnique(t, s)
		})
	}
}

// TestAssembleClassifiesSelection verifies complex compounds become MAIN and the rest ACCESSORY.
func TestAssembleClassifiesSelection(t *testing.T) {
	a := newAssembler(t, selecting("Bench Press", "Barbell Row", "Lateral Raise", "Face Pull"))
	s := upperSession()

	out, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 75})
	require.NoError(t, err)
	assert.Equal(t, SourceOptimizer, out.Source)
	assert.Equal(t, []string{"Bench Press", "Barbell Row"}, names(s.Main))
	assert.Equal(t, []string{"Lateral Raise", "Face Pull"}, names(s.Accessory))
	assert.GreaterOrEqual(t, len(s.Warmup), 2)
	assert.GreaterOrEqual(t, len(s.Cooldown), 2)

	// Orders run across the whole session.
	for i, ex := range s.Assignments() {
		assert.Equal(t, i+1, ex.Order)
	}
}

// TestAssemblePromotesAccessory verifies a selection without complex lifts still has a MAIN entry.
func TestAssemblePromotesAccessory(t *testing.T) {
	a := newAssembler(t, selecting("Push-Up", "Face Pull"))
	s := upperSession()

	_, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 75})
	require.NoError(t, err)
	assert.Equal(t, []string{"Push-Up"}, names(s.Main))
	assert.Equal(t, models.RoleMain, s.Main[0].Role)
	assertUnique(t, s)
}

// TestAssembleReplacesDuplicates verifies a repeated movement is swapped for a muscle equivalent.
func TestAssembleReplacesDuplicates(t *testing.T) {
	a := newAssembler(t, selecting("Bench Press", "Face Pull", "Face Pull"))
	s := upperSession()

	out, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 75})
	require.NoError(t, err)
	assertUnique(t, s)
	assert.Contains(t, names(s.Accessory), "Rear Delt Fly")
	assert.Contains(t, out.Replacements, Replacement{
		Role: models.RoleAccessory, From: "Face Pull", To: "Rear Delt Fly", Reason: reasonDuplicate,
	})
}

// TestAssembleAvoidsPreviousAccessories verifies yesterday's accessories are swapped out.
func TestAssembleAvoidsPreviousAccessories(t *testing.T) {
	a := newAssembler(t, selecting("Bench Press", "Barbell Row", "Face Pull"))
	s := upperSession()

	_, err := a.Assemble(context.Background(), s, Input{
		Goals:               strengthOnly,
		MaxSessionMinutes:   75,
		PreviousAccessories: []string{"Face Pull"},
	})
	require.NoError(t, err)
	assert.NotContains(t, names(s.Accessory), "Face Pull")
	assert.Contains(t, names(s.Accessory), "Rear Delt Fly")
}

// TestAssembleMissingMovements verifies the 10% tolerance for unresolvable names.
func TestAssembleMissingMovements(t *testing.T) {
	t.Run("over tolerance", func(t *testing.T) {
		a := newAssembler(t, selecting("Bench Press", "Mystery Press"))
		_, err := a.Assemble(context.Background(), upperSession(), Input{Goals: strengthOnly, MaxSessionMinutes: 75})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTooManyMissing))
	})

	t.Run("within tolerance", func(t *testing.T) {
		a := newAssembler(t, selecting(
			"Bench Press", "Barbell Row", "Pull-Up", "Overhead Press", "Face Pull",
			"Lateral Raise", "Biceps Curl", "Triceps Pushdown", "Dips", "Hammer Curl",
			"Mystery Press",
		))
		s := upperSession()
		out, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 120})
		require.NoError(t, err)
		assert.Equal(t, []string{"Mystery Press"}, out.Missing)
		assert.NotContains(t, s.MovementNames(), "Mystery Press")
	})
}

// TestAssembleSelectionAllExcluded verifies a selection made only of excluded
// movements leaves a marked placeholder MAIN entry instead of failing.
func TestAssembleSelectionAllExcluded(t *testing.T) {
	a := newAssembler(t, selecting("Bench Press", "Barbell Row"))
	s := upperSession()
	out, err := a.Assemble(context.Background(), s, Input{
		Goals:             strengthOnly,
		MaxSessionMinutes: 60,
		Rules:             models.MovementRules{Excluded: []string{"bench press", "Barbell Row"}},
	})
	require.NoError(t, err)
	assert.Equal(t, SourcePlaceholder, out.Source)
	require.Len(t, s.Main, 1)
	assert.True(t, s.Main[0].Placeholder)
	assert.Zero(t, s.Main[0].Sets)
	assert.NotContains(t, s.MovementNames(), "Bench Press")
	assert.NotContains(t, s.MovementNames(), "Barbell Row")
	assert.Contains(t, s.CoachNotes, "regenerate it")
}

// TestAssembleHeuristicFallback verifies optimizer failures fall back to the pattern heuristic.
func TestAssembleHeuristicFallback(t *testing.T) {
	tests := []struct {
		name string
		opt  optimizer.Optimizer
	}{
		{"disabled", optimizer.Disabled{}},
		{"error", optimizer.Func(func(context.Context, optimizer.Request) (optimizer.Result, error) {
			return optimizer.Result{Status: optimizer.StatusError}, errors.New("boom")
		})},
		{"infeasible", optimizer.Func(func(context.Context, optimizer.Request) (optimizer.Result, error) {
			return optimizer.Result{Status: optimizer.StatusInfeasible}, nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssembler(t, tt.opt)
			s := upperSession()
			out, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 75})
			require.NoError(t, err)
			assert.Equal(t, SourceHeuristic, out.Source)
			assert.Equal(t, []string{"Bench Press", "Barbell Row"}, names(s.Main))
			assert.Equal(t, []string{"Dumbbell Fly", "Face Pull", "Triceps Pushdown"}, names(s.Accessory))
		})
	}
}

// TestAssembleHeuristicSkipsUsed verifies the heuristic avoids movements used earlier in the microcycle.
func TestAssembleHeuristicSkipsUsed(t *testing.T) {
	a := newAssembler(t, optimizer.Disabled{})
	s := upperSession()
	_, err := a.Assemble(context.Background(), s, Input{
		Goals:             strengthOnly,
		MaxSessionMinutes: 75,
		UsedMovements:     map[string]bool{"bench press": true, "dumbbell fly": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dumbbell Bench Press", s.Main[0].Movement)
	assert.NotContains(t, names(s.Accessory), "Dumbbell Fly")
}

// TestAssembleRequestExcludesUsed verifies the optimizer request carries the diversity state.
func TestAssembleRequestExcludesUsed(t *testing.T) {
	var got optimizer.Request
	opt := optimizer.Func(func(_ context.Context, req optimizer.Request) (optimizer.Result, error) {
		got = req
		return optimizer.Result{Status: optimizer.StatusOptimal, Selected: []string{"Overhead Press"}}, nil
	})
	a := newAssembler(t, opt)
	_, err := a.Assemble(context.Background(), upperSession(), Input{
		Goals:             strengthOnly,
		MaxSessionMinutes: 60,
		Rules:             models.MovementRules{Excluded: []string{"Dips"}},
		UsedMovements:     map[string]bool{"bench press": true},
		PreviousDayVolume: map[string]float64{"chest": 4},
	})
	require.NoError(t, err)
	assert.Contains(t, got.Excluded, "Dips")
	assert.Contains(t, got.Excluded, "Bench Press")
	assert.Equal(t, 60, got.DurationMinutes)
	assert.InDelta(t, 4.0, got.TargetVolume["chest"], 0.001)
	assert.Equal(t, []string{"powerlifting", "weightlifting"}, got.Disciplines)
	for _, mv := range got.Movements {
		assert.NotEqual(t, models.PatternCardio, mv.Pattern)
		assert.NotEqual(t, models.PatternMobility, mv.Pattern)
		assert.NotEqual(t, models.RegionLower, mv.Region)
	}
}

// TestDisciplinesFor verifies goal disciplines are ordered by goal weight.
func TestDisciplinesFor(t *testing.T) {
	got := disciplinesFor(models.GoalWeights{
		{Goal: models.GoalMobility, Weight: 3},
		{Goal: models.GoalFatLoss, Weight: 1},
		{Goal: models.GoalHypertrophy, Weight: 2},
		{Goal: models.GoalEndurance, Weight: 0},
	})
	assert.Equal(t, []string{"bodybuilding", "conditioning"}, got)
	assert.Empty(t, disciplinesFor(nil))
}

// TestAssembleTimeout verifies a session whose deadline passes during the draft fails.
func TestAssembleTimeout(t *testing.T) {
	opt := optimizer.Func(func(ctx context.Context, _ optimizer.Request) (optimizer.Result, error) {
		<-ctx.Done()
		return optimizer.Result{Status: optimizer.StatusTimeout}, ctx.Err()
	})
	a := newAssembler(t, opt)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Assemble(ctx, upperSession(), Input{Goals: strengthOnly, MaxSessionMinutes: 60})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// TestAssembleDeload verifies deload sessions lose a set and some effort.
func TestAssembleDeload(t *testing.T) {
	a := newAssembler(t, selecting("Bench Press", "Barbell Row", "Face Pull"))
	s := upperSession()

	_, err := a.Assemble(context.Background(), s, Input{Goals: strengthOnly, MaxSessionMinutes: 75, Deload: true})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Main[0].Sets)
	assert.InDelta(t, 6.5, s.Main[0].TargetRPE, 0.001)
	assert.Contains(t, s.CoachNotes, "Deload")
}

// TestFitToBudget verifies accessories are trimmed before main sets.
func TestFitToBudget(t *testing.T) {
	s := upperSession()
	s.Main = prescribeAll(models.RoleMain, []string{"Bench Press", "Barbell Row"}, strengthOnly)
	s.Accessory = prescribeAll(models.RoleAccessory, []string{"Face Pull", "Lateral Raise", "Biceps Curl"}, strengthOnly)

	fitToBudget(s, 25)
	assert.Len(t, s.Accessory, 1)
	assert.LessOrEqual(t, estimateMinutes(s), 25)
	assert.Equal(t, 3, s.Main[0].Sets)
}
