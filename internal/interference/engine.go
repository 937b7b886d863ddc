// Package interference keeps a session's main movement patterns from repeating
// too soon after the days that already used them.
package interference

import (
	"fmt"
	"log/slog"

	"github.com/shourjoguha/alloy/internal/models"
)

// weeklyCap is how many times a main pattern may appear in a trailing 7-day window.
const weeklyCap = 2

// alternatives are tried in order before falling back to a family scan.
var alternatives = map[string][]string{
	models.PatternSquat:          {models.PatternHinge, models.PatternLunge},
	models.PatternHinge:          {models.PatternSquat, models.PatternLunge},
	models.PatternLunge:          {models.PatternSquat, models.PatternHinge},
	models.PatternHorizontalPush: {models.PatternVerticalPush},
	models.PatternVerticalPush:   {models.PatternHorizontalPush},
	models.PatternHorizontalPull: {models.PatternVerticalPull},
	models.PatternVerticalPull:   {models.PatternHorizontalPull},
}

var (
	lowerFamily = []string{models.PatternSquat, models.PatternHinge, models.PatternLunge}
	upperFamily = []string{
		models.PatternHorizontalPush, models.PatternVerticalPush,
		models.PatternHorizontalPull, models.PatternVerticalPull,
	}
)

// Substitution records one pattern swap.
type Substitution struct {
	Day  int
	From string
	To   string
}

// Engine checks candidate patterns against the main patterns of earlier days.
// The map is shared with the caller, which appends to it as sessions finish.
type Engine struct {
	used map[int][]string
	log  *slog.Logger
}

// New creates an Engine over the day → main patterns map.
func New(used map[int][]string, log *slog.Logger) *Engine {
	if used == nil {
		used = map[int][]string{}
	}
	return &Engine{used: used, log: log}
}

// Record appends the main patterns used on a day.
func (e *Engine) Record(day int, patterns []string) {
	e.used[day] = append(e.used[day], patterns...)
}

// HasConflict reports whether pattern was a main pattern on either of the two
// previous days, or already reached the weekly cap in the 6 days before day.
func (e *Engine) HasConflict(pattern string, day int) bool {
	if inMain(e.used[day-1], pattern) || inMain(e.used[day-2], pattern) {
		return true
	}
	count := 0
	for d := day - 6; d < day; d++ {
		for _, p := range e.used[d] {
			if p == pattern {
				count++
			}
		}
	}
	return count >= weeklyCap
}

// FindAlternative returns the first non-conflicting pattern from the pattern's
// alternatives, then from its whole family.
func (e *Engine) FindAlternative(pattern string, day int) (string, bool) {
	return e.findAlternative(pattern, day, nil)
}

func (e *Engine) findAlternative(pattern string, day int, exclude map[string]bool) (string, bool) {
	try := func(candidates []string) (string, bool) {
		for _, c := range candidates {
			if c == pattern || exclude[c] {
				continue
			}
			if !e.HasConflict(c, day) {
				return c, true
			}
		}
		return "", false
	}
	if alt, ok := try(alternatives[pattern]); ok {
		return alt, true
	}
	switch models.PatternFamily(pattern) {
	case models.FamilyLower:
		return try(lowerFamily)
	case models.FamilyPush, models.FamilyPull:
		return try(upperFamily)
	}
	return "", false
}

// Apply rewrites the session's main patterns in place when they conflict.
// Rest days and conditioning-style sessions are left alone.
func (e *Engine) Apply(s *models.Session) []Substitution {
	if !s.IsLifting() {
		return nil
	}
	n := min(len(s.Patterns), 2)
	var subs []Substitution
	for i := 0; i < n; i++ {
		pattern := s.Patterns[i]
		if !e.HasConflict(pattern, s.DayNumber) {
			continue
		}
		// Never swap into the session's other main pattern.
		exclude := map[string]bool{}
		for j := 0; j < n; j++ {
			if j != i {
				exclude[s.Patterns[j]] = true
			}
		}
		alt, ok := e.findAlternative(pattern, s.DayNumber, exclude)
		if !ok {
			e.log.Debug("no pattern alternative", "day", s.DayNumber, "pattern", pattern)
			s.AppendNote(fmt.Sprintf("Kept %s: every alternative was trained too recently.", pattern))
			continue
		}
		s.Patterns[i] = alt
		subs = append(subs, Substitution{Day: s.DayNumber, From: pattern, To: alt})
		e.log.Info("pattern substituted", "day", s.DayNumber, "from", pattern, "to", alt)
		s.AppendNote(fmt.Sprintf("Swapped %s for %s to give it more recovery time.", pattern, alt))
	}
	return subs
}

func inMain(patterns []string, pattern string) bool {
	for i, p := range patterns {
		if i >= 2 {
			break
		}
		if p == pattern {
			return true
		}
	}
	return false
}
