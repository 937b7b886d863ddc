package structure

import (
	"math"
	"sort"

	"github.com/shourjoguha/alloy/internal/models"
)

// DayPlan describes one day of a microcycle skeleton.
type DayPlan struct {
	Day      int                // 1-based day within the cycle
	Type     models.SessionType // RECOVERY for rest days
	Patterns []string
	Tags     []string
}

// Training reports whether the day is not a rest day.
func (d DayPlan) Training() bool {
	return d.Type != models.SessionRecovery
}

// Lifting reports whether the day is a lifting archetype.
func (d DayPlan) Lifting() bool {
	switch d.Type {
	case models.SessionRecovery, models.SessionCardio, models.SessionMobility, models.SessionCustom:
		return false
	}
	return true
}

func (d *DayPlan) addTag(tag string) {
	for _, t := range d.Tags {
		if t == tag {
			return
		}
	}
	d.Tags = append(d.Tags, tag)
}

func (d DayPlan) hasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

var (
	lowerCycle = []string{models.PatternSquat, models.PatternHinge, models.PatternLunge}
	pushCycle  = []string{models.PatternHorizontalPush, models.PatternVerticalPush}
	pullCycle  = []string{models.PatternHorizontalPull, models.PatternVerticalPull}
)

// Rotation returns the archetype rotation for a days-per-week target.
func Rotation(daysPerWeek int) []models.SessionType {
	switch {
	case daysPerWeek <= 3:
		return []models.SessionType{models.SessionFullBody}
	case daysPerWeek == 4:
		return []models.SessionType{models.SessionUpper, models.SessionLower, models.SessionUpper, models.SessionLower, models.SessionFullBody}
	case daysPerWeek == 5:
		return []models.SessionType{models.SessionUpper, models.SessionLower, models.SessionFullBody, models.SessionUpper, models.SessionLower}
	default:
		return []models.SessionType{models.SessionPush, models.SessionPull, models.SessionLegs, models.SessionUpper, models.SessionLower, models.SessionFullBody}
	}
}

// TrainingDays picks round(daysPerWeek*length/7) days, clamped to [2, length],
// spread evenly across the cycle. Days are 1-based and sorted.
func TrainingDays(length, daysPerWeek int) []int {
	if length <= 0 {
		return nil
	}
	target := int(math.Round(float64(daysPerWeek) * float64(length) / 7))
	if target < 2 {
		target = 2
	}
	if target > length {
		target = length
	}

	taken := make(map[int]bool, target)
	days := make([]int, 0, target)
	slot := float64(length) / float64(target)
	for k := 0; k < target; k++ {
		ideal := int(math.Round((float64(k) + 0.5) * slot))
		if ideal < 1 {
			ideal = 1
		}
		if ideal > length {
			ideal = length
		}
		day, ok := nearestFree(ideal, length, taken)
		if !ok {
			continue
		}
		taken[day] = true
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// nearestFree nudges forward first, then backward.
func nearestFree(ideal, length int, taken map[int]bool) (int, bool) {
	if !taken[ideal] {
		return ideal, true
	}
	for d := ideal + 1; d <= length; d++ {
		if !taken[d] {
			return d, true
		}
	}
	for d := ideal - 1; d >= 1; d-- {
		if !taken[d] {
			return d, true
		}
	}
	return 0, false
}

// patternCursors rotate independently so focus moves forward across the cycle.
type patternCursors struct {
	lower, push, pull int
}

func rotate(cycle []string, cursor *int) string {
	p := cycle[*cursor%len(cycle)]
	*cursor++
	return p
}

func (c *patternCursors) patternsFor(t models.SessionType) []string {
	switch t {
	case models.SessionUpper:
		return []string{rotate(pushCycle, &c.push), rotate(pullCycle, &c.pull)}
	case models.SessionLower, models.SessionLegs:
		return []string{rotate(lowerCycle, &c.lower), rotate(lowerCycle, &c.lower)}
	case models.SessionPush:
		return []string{rotate(pushCycle, &c.push), rotate(pushCycle, &c.push)}
	case models.SessionPull:
		return []string{rotate(pullCycle, &c.pull), rotate(pullCycle, &c.pull)}
	default:
		return []string{rotate(lowerCycle, &c.lower), rotate(pushCycle, &c.push), rotate(pullCycle, &c.pull)}
	}
}

// AssignDays lays out a cycle: rest days are RECOVERY, training days cycle
// through the rotation for daysPerWeek and receive 1–3 pattern tags.
func AssignDays(length, daysPerWeek int) []DayPlan {
	plans := make([]DayPlan, length)
	for i := range plans {
		plans[i] = DayPlan{Day: i + 1, Type: models.SessionRecovery}
	}

	rotation := Rotation(daysPerWeek)
	var cursors patternCursors
	for i, day := range TrainingDays(length, daysPerWeek) {
		t := rotation[i%len(rotation)]
		plans[day-1].Type = t
		plans[day-1].Patterns = cursors.patternsFor(t)
	}
	return plans
}
