package assembly

import (
	"github.com/shourjoguha/alloy/internal/models"
)

// minPrepEntries is the size below which warmup and cooldown are rebuilt.
const minPrepEntries = 2

// synthesizeWarmup rebuilds the warmup from the base entry plus one drill per main pattern.
func synthesizeWarmup(s *models.Session) {
	if len(s.Warmup) >= minPrepEntries {
		return
	}
	names := []string{warmupBase}
	for _, p := range s.MainPatterns() {
		if d, ok := warmupDrills[p]; ok && !contains(names, d) {
			names = append(names, d)
		}
	}
	s.Warmup = prescribeAll(models.RoleWarmup, names, nil)
}

// synthesizeCooldown rebuilds the cooldown from the base entry plus one stretch per pattern.
func synthesizeCooldown(s *models.Session) {
	if len(s.Cooldown) >= minPrepEntries {
		return
	}
	names := []string{cooldownBase}
	for _, p := range s.Patterns {
		if st, ok := cooldownStretches[p]; ok && !contains(names, st) {
			names = append(names, st)
		}
	}
	s.Cooldown = prescribeAll(models.RoleCooldown, names, nil)
}

// prefersFinisher decides between an accessory block and a finisher.
// Precedence: explicit tags, then a cardio or conditioning session, then the
// fat_loss+endurance versus strength+hypertrophy comparison with ties going
// to the finisher.
func prefersFinisher(s *models.Session, goals models.GoalWeights) bool {
	switch {
	case s.HasTag(models.TagPreferFinisher):
		return true
	case s.HasTag(models.TagPreferAccessory):
		return false
	case s.IsConditioning(), s.HasTag(models.TagConditioning):
		return true
	}
	return goals.CardioPressure() >= goals.LiftingPressure()
}

// synthesizeFinisher builds a finisher matched to the dominant cardio-side goal.
func synthesizeFinisher(goals models.GoalWeights) *models.Finisher {
	fl, en := goals.Share(models.GoalFatLoss), goals.Share(models.GoalEndurance)
	switch {
	case fl == 0 && en == 0:
		return cloneFinisher(defaultFinisher)
	case en > fl:
		return cloneFinisher(finisherTemplates[models.GoalEndurance])
	default:
		return cloneFinisher(finisherTemplates[models.GoalFatLoss])
	}
}

// offerFinisher adds a finisher candidate when the session or the goals ask for one,
// so the exclusivity step can choose between it and the accessory block.
func offerFinisher(s *models.Session, goals models.GoalWeights, threshold float64) {
	if s.Finisher != nil {
		return
	}
	if s.HasTag(models.TagPreferFinisher) || goals.CardioPressure() >= threshold {
		s.Finisher = synthesizeFinisher(goals)
	}
}

// enforceExclusivity leaves exactly one of a non-empty accessory block or a finisher.
func enforceExclusivity(s *models.Session, goals models.GoalWeights) {
	if s.Finisher != nil && len(s.Finisher.Exercises) == 0 {
		s.Finisher = nil
	}
	hasAccessory := len(s.Accessory) > 0
	hasFinisher := s.Finisher != nil

	switch {
	case hasAccessory && hasFinisher:
		if prefersFinisher(s, goals) {
			s.Accessory = nil
		} else {
			s.Finisher = nil
		}
	case hasAccessory, hasFinisher:
	default:
		s.Accessory = staticAccessories(s, goals)
		if len(s.Accessory) == 0 {
			s.Finisher = synthesizeFinisher(goals)
		}
	}
}

// staticAccessories returns the archetype's static accessory set minus
// anything already in the session.
func staticAccessories(s *models.Session, goals models.GoalWeights) []models.ExerciseAssignment {
	used := sessionNames(s)
	var names []string
	for _, n := range templateFor(s.Type).accessory {
		if !used[key(n)] {
			names = append(names, n)
		}
	}
	return prescribeAll(models.RoleAccessory, names, goals)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
