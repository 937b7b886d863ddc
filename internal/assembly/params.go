package assembly

import (
	"github.com/shourjoguha/alloy/internal/models"
)

// prescribe returns the default prescription for a movement in a role.
func prescribe(role models.Role, name string, goals models.GoalWeights) models.ExerciseAssignment {
	a := models.ExerciseAssignment{Role: role, Movement: name}
	switch role {
	case models.RoleMain:
		if goals.Share(models.GoalStrength) >= goals.Share(models.GoalHypertrophy) {
			a.Sets, a.RepMin, a.RepMax, a.TargetRPE, a.RestSeconds = 4, 3, 6, 8, 180
		} else {
			a.Sets, a.RepMin, a.RepMax, a.TargetRPE, a.RestSeconds = 4, 6, 10, 7.5, 120
		}
	case models.RoleAccessory:
		a.Sets, a.RepMin, a.RepMax, a.TargetRPE, a.RestSeconds = 3, 10, 15, 7.5, 75
	case models.RoleFinisher:
		a.Sets, a.RepMin, a.RepMax, a.TargetRPE, a.RestSeconds = 1, 12, 15, 8, 15
	case models.RoleWarmup:
		if name == warmupBase {
			a.DurationSeconds = 300
		} else {
			a.Sets, a.RepMin, a.RepMax = 1, 8, 10
		}
	case models.RoleCooldown:
		if name == cooldownBase {
			a.DurationSeconds = 300
		} else {
			a.DurationSeconds = 60
		}
	}
	return a
}

func exercises(role models.Role, names ...string) []models.ExerciseAssignment {
	out := make([]models.ExerciseAssignment, 0, len(names))
	for _, n := range names {
		out = append(out, prescribe(role, n, nil))
	}
	return out
}

func prescribeAll(role models.Role, names []string, goals models.GoalWeights) []models.ExerciseAssignment {
	out := make([]models.ExerciseAssignment, 0, len(names))
	for _, n := range names {
		out = append(out, prescribe(role, n, goals))
	}
	return out
}

func cloneFinisher(f models.Finisher) *models.Finisher {
	f.Exercises = append([]models.ExerciseAssignment(nil), f.Exercises...)
	return &f
}

// applyDeload trims volume and intensity for a deload cycle.
func applyDeload(s *models.Session) {
	trim := func(list []models.ExerciseAssignment, minSets int) {
		for i := range list {
			if list[i].Sets > minSets {
				list[i].Sets--
			}
			if list[i].TargetRPE > 0 {
				list[i].TargetRPE = max(list[i].TargetRPE-1.5, 5)
			}
		}
	}
	trim(s.Main, 2)
	trim(s.Accessory, 1)
	if s.Finisher != nil && s.Finisher.Rounds > 1 {
		s.Finisher.Rounds--
	}
}

// Rough per-set timing used for duration estimates.
const (
	secondsPerSet    = 45
	secondsPerRepSet = 30
)

func assignmentSeconds(a models.ExerciseAssignment) int {
	if a.DurationSeconds > 0 {
		return a.DurationSeconds
	}
	if a.Sets == 0 {
		return 0
	}
	work := secondsPerSet
	if a.Role == models.RoleWarmup {
		work = secondsPerRepSet
	}
	return a.Sets*work + (a.Sets-1)*a.RestSeconds
}

// estimateMinutes sums the prescribed work, rest and finisher time.
func estimateMinutes(s *models.Session) int {
	total := 0
	for _, list := range [][]models.ExerciseAssignment{s.Warmup, s.Main, s.Accessory, s.Cooldown} {
		for _, a := range list {
			total += assignmentSeconds(a)
		}
	}
	if s.Finisher != nil {
		total += s.Finisher.Minutes * 60
	}
	return (total + 59) / 60
}

// fitToBudget drops trailing accessories, then main sets, until the estimate fits.
func fitToBudget(s *models.Session, maxMinutes int) {
	if maxMinutes <= 0 {
		return
	}
	for estimateMinutes(s) > maxMinutes && len(s.Accessory) > 1 {
		s.Accessory = s.Accessory[:len(s.Accessory)-1]
	}
	for estimateMinutes(s) > maxMinutes {
		trimmed := false
		for i := range s.Main {
			if s.Main[i].Sets > 2 {
				s.Main[i].Sets--
				trimmed = true
			}
		}
		if !trimmed {
			return
		}
	}
}

// renumber assigns a session-wide order across every section.
func renumber(s *models.Session) {
	n := 0
	set := func(list []models.ExerciseAssignment) {
		for i := range list {
			n++
			list[i].Order = n
		}
	}
	set(s.Warmup)
	set(s.Main)
	set(s.Accessory)
	if s.Finisher != nil {
		set(s.Finisher.Exercises)
	}
	set(s.Cooldown)
}
