package sequencer

import (
	"context"
	"fmt"
	"sort"

	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/models"
)

// Volume weights per role. Secondary muscles count half.
var roleWeight = map[models.Role]float64{
	models.RoleMain:      3,
	models.RoleAccessory: 2,
}

const secondaryFactor = 0.5

// State is the diversity and fatigue bookkeeping of one microcycle run. It is
// owned by a single Run and never shared between concurrent runs.
type State struct {
	UsedMovements    map[string]bool // keyed by catalog.Key
	UsedGroups       map[string]int
	UsedMainPatterns map[int][]string
	UsedAccessories  map[int][]string
	// Volume is the muscle volume of each day. A missing or empty day means
	// no carried fatigue.
	Volume map[int]map[string]float64
}

// NewState returns empty bookkeeping.
func NewState() *State {
	return &State{
		UsedMovements:    map[string]bool{},
		UsedGroups:       map[string]int{},
		UsedMainPatterns: map[int][]string{},
		UsedAccessories:  map[int][]string{},
		Volume:           map[int]map[string]float64{},
	}
}

// SeedState bootstraps bookkeeping from sessions that already completed, so
// regenerating a subset of a microcycle keeps its diversity guarantees.
func SeedState(ctx context.Context, cat catalog.Catalog, sessions []models.Session) (*State, error) {
	st := NewState()
	done := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.GenerationStatus == models.GenCompleted {
			done = append(done, s)
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].DayNumber < done[j].DayNumber })

	for i := range done {
		s := &done[i]
		if s.IsRecovery() {
			st.ResetVolume(s.DayNumber)
			continue
		}
		movements, err := cat.Lookup(ctx, s.MovementNames())
		if err != nil {
			return nil, fmt.Errorf("seeding state from day %d: %w", s.DayNumber, err)
		}
		st.Record(s, movements)
	}
	return st, nil
}

// Record folds a completed session into the bookkeeping. movements maps the
// session's movement names to their catalog entries; names missing from it
// still count as used but add no group or volume.
func (st *State) Record(s *models.Session, movements map[string]models.Movement) {
	if s.IsRecovery() {
		st.ResetVolume(s.DayNumber)
		return
	}

	for _, name := range s.MovementNames() {
		st.UsedMovements[catalog.Key(name)] = true
		if mv, ok := movements[name]; ok && mv.SubstitutionGroup != "" {
			st.UsedGroups[mv.SubstitutionGroup]++
		}
	}
	if s.IsLifting() {
		st.UsedMainPatterns[s.DayNumber] = append(st.UsedMainPatterns[s.DayNumber], s.MainPatterns()...)
	}
	st.UsedAccessories[s.DayNumber] = s.AccessoryNames()

	volume := map[string]float64{}
	for _, a := range s.Assignments() {
		mv, ok := movements[a.Movement]
		if a.Placeholder || !ok {
			continue
		}
		w, ok := roleWeight[a.Role]
		if !ok {
			w = 1
		}
		if mv.PrimaryMuscle != "" {
			volume[mv.PrimaryMuscle] += w
		}
		for _, m := range mv.SecondaryMuscles {
			volume[m] += w * secondaryFactor
		}
	}
	st.Volume[s.DayNumber] = volume
}

// ResetVolume clears the fatigue carried out of day.
func (st *State) ResetVolume(day int) {
	st.Volume[day] = map[string]float64{}
}

// PreviousDayVolume is the muscle volume of the calendar day before day.
func (st *State) PreviousDayVolume(day int) map[string]float64 {
	return st.Volume[day-1]
}

// PreviousAccessories returns the accessory list of the closest earlier
// training day, or nil when there is none.
func (st *State) PreviousAccessories(day int) []string {
	for d := day - 1; d >= 1; d-- {
		if acc, ok := st.UsedAccessories[d]; ok {
			return acc
		}
	}
	return nil
}
