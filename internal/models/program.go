package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Goal is a training goal a program is weighted toward.
type Goal string

const (
	GoalStrength    Goal = "strength"
	GoalHypertrophy Goal = "hypertrophy"
	GoalEndurance   Goal = "endurance"
	GoalFatLoss     Goal = "fat_loss"
	GoalMobility    Goal = "mobility"
)

// AllGoals lists every known goal in a stable order.
var AllGoals = []Goal{GoalStrength, GoalHypertrophy, GoalEndurance, GoalFatLoss, GoalMobility}

// MaxGoals is the number of (goal, weight) pairs a program may carry.
const MaxGoals = 3

// GoalWeight pairs a goal with its relative weight.
type GoalWeight struct {
	Goal   Goal    `json:"goal" yaml:"goal"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// GoalWeights is a set of weights compared against each other, not against a fixed total.
type GoalWeights []GoalWeight

// Share returns the goal's weight as a fraction of the summed weights, or 0.
func (g GoalWeights) Share(goal Goal) float64 {
	var total, w float64
	for _, gw := range g {
		total += gw.Weight
		if gw.Goal == goal {
			w += gw.Weight
		}
	}
	if total <= 0 {
		return 0
	}
	return w / total
}

// Shares returns the normalized share of every goal present.
func (g GoalWeights) Shares() map[Goal]float64 {
	out := make(map[Goal]float64, len(g))
	for _, gw := range g {
		out[gw.Goal] = g.Share(gw.Goal)
	}
	return out
}

// CardioPressure is the combined fat-loss and endurance share.
func (g GoalWeights) CardioPressure() float64 {
	return g.Share(GoalFatLoss) + g.Share(GoalEndurance)
}

// LiftingPressure is the combined strength and hypertrophy share.
func (g GoalWeights) LiftingPressure() float64 {
	return g.Share(GoalStrength) + g.Share(GoalHypertrophy)
}

// CardioDedication controls whether lifting days may become dedicated cardio days.
type CardioDedication string

const (
	CardioAuto      CardioDedication = "auto"
	CardioDedicated CardioDedication = "dedicated"
	CardioNever     CardioDedication = "never"
)

// SchedulingPreferences are user preferences consulted by the time bucket allocator.
type SchedulingPreferences struct {
	CardioDedication     CardioDedication `json:"cardio_dedication" yaml:"cardio_dedication"`
	AvoidCardioDays      bool             `json:"avoid_cardio_days" yaml:"avoid_cardio_days"`
	EnduranceHeavyOptOut bool             `json:"endurance_heavy_opt_out" yaml:"endurance_heavy_opt_out"`
}

// MovementRules are user-level movement constraints forwarded to the optimizer.
type MovementRules struct {
	Required  []string `json:"required,omitempty" yaml:"required"`
	Excluded  []string `json:"excluded,omitempty" yaml:"excluded"`
	Preferred []string `json:"preferred,omitempty" yaml:"preferred"`
}

// Program is a multi-week training program.
type Program struct {
	ID                   uuid.UUID             `json:"id"`
	Name                 string                `json:"name"`
	DurationWeeks        int                   `json:"duration_weeks"`
	Goals                GoalWeights           `json:"goals"`
	DaysPerWeek          int                   `json:"days_per_week"`
	MaxSessionMinutes    int                   `json:"max_session_minutes"`
	DeloadEvery          int                   `json:"deload_every"`
	PreferredCycleLength int                   `json:"preferred_cycle_length,omitempty"`
	StartDate            time.Time             `json:"start_date"`
	Preferences          SchedulingPreferences `json:"preferences"`
	Rules                MovementRules         `json:"rules"`
	CreatedAt            time.Time             `json:"created_at"`
}

// TotalDays is the program duration in days.
func (p *Program) TotalDays() int {
	return p.DurationWeeks * 7
}

// ValidationError reports an invalid program field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// conflictShare is the share at which two conflicting goals are both considered dominant.
const conflictShare = 0.4

// conflictingGoals are goal pairs that cannot both dominate a program.
var conflictingGoals = [][2]Goal{
	{GoalStrength, GoalEndurance},
}

// Validate checks the program before any structure is generated.
func (p *Program) Validate() error {
	if p.DurationWeeks < 8 || p.DurationWeeks > 12 || p.DurationWeeks%2 != 0 {
		return &ValidationError{Field: "duration_weeks", Msg: "must be an even number between 8 and 12"}
	}
	if len(p.Goals) == 0 || len(p.Goals) > MaxGoals {
		return &ValidationError{Field: "goals", Msg: fmt.Sprintf("between 1 and %d goals required", MaxGoals)}
	}
	seen := map[Goal]bool{}
	for _, gw := range p.Goals {
		if !isKnownGoal(gw.Goal) {
			return &ValidationError{Field: "goals", Msg: fmt.Sprintf("unknown goal %q", gw.Goal)}
		}
		if seen[gw.Goal] {
			return &ValidationError{Field: "goals", Msg: fmt.Sprintf("duplicate goal %q", gw.Goal)}
		}
		seen[gw.Goal] = true
		if gw.Weight <= 0 {
			return &ValidationError{Field: "goals", Msg: fmt.Sprintf("weight for %q must be positive", gw.Goal)}
		}
	}
	for _, pair := range conflictingGoals {
		if p.Goals.Share(pair[0]) >= conflictShare && p.Goals.Share(pair[1]) >= conflictShare {
			return &ValidationError{Field: "goals", Msg: fmt.Sprintf("%s and %s cannot both dominate a program", pair[0], pair[1])}
		}
	}
	if p.DaysPerWeek < 2 || p.DaysPerWeek > 7 {
		return &ValidationError{Field: "days_per_week", Msg: "must be between 2 and 7"}
	}
	if p.MaxSessionMinutes < 20 || p.MaxSessionMinutes > 180 {
		return &ValidationError{Field: "max_session_minutes", Msg: "must be between 20 and 180"}
	}
	if p.DeloadEvery < 0 {
		return &ValidationError{Field: "deload_every", Msg: "must not be negative"}
	}
	if p.PreferredCycleLength != 0 && (p.PreferredCycleLength < MinCycleLength || p.PreferredCycleLength > MaxCycleLength) {
		return &ValidationError{Field: "preferred_cycle_length", Msg: fmt.Sprintf("must be between %d and %d", MinCycleLength, MaxCycleLength)}
	}
	switch p.Preferences.CardioDedication {
	case "", CardioAuto, CardioDedicated, CardioNever:
	default:
		return &ValidationError{Field: "preferences.cardio_dedication", Msg: fmt.Sprintf("unknown policy %q", p.Preferences.CardioDedication)}
	}
	if p.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Msg: "required"}
	}
	return nil
}

// SortedGoals returns the goals ordered by descending weight.
func (p *Program) SortedGoals() GoalWeights {
	out := append(GoalWeights(nil), p.Goals...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func isKnownGoal(g Goal) bool {
	for _, known := range AllGoals {
		if g == known {
			return true
		}
	}
	return false
}
