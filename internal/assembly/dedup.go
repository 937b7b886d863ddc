package assembly

import (
	"context"

	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/models"
)

// Replacement records a movement swapped out during dedup.
type Replacement struct {
	Role   models.Role `json:"role"`
	From   string      `json:"from"`
	To     string      `json:"to,omitempty"`
	Reason string      `json:"reason"`
}

const (
	reasonDuplicate       = "duplicate in session"
	reasonRecentAccessory = "accessory on previous training day"
)

func key(name string) string { return catalog.Key(name) }

func sessionNames(s *models.Session) map[string]bool {
	used := map[string]bool{}
	for _, a := range s.Assignments() {
		if !a.Placeholder {
			used[key(a.Movement)] = true
		}
	}
	return used
}

// section is one role's list inside a session, in dedup priority order.
type section struct {
	role models.Role
	list *[]models.ExerciseAssignment
}

func sections(s *models.Session) []section {
	out := []section{
		{models.RoleMain, &s.Main},
		{models.RoleAccessory, &s.Accessory},
	}
	if s.Finisher != nil {
		out = append(out, section{models.RoleFinisher, &s.Finisher.Exercises})
	}
	return append(out,
		section{models.RoleWarmup, &s.Warmup},
		section{models.RoleCooldown, &s.Cooldown},
	)
}

// dedupe keeps each movement in its highest-priority section. Removed
// training movements are replaced by a muscle-equivalent alternative when
// one is free; removed warmup and cooldown drills are just dropped.
func (a *Assembler) dedupe(ctx context.Context, s *models.Session, goals models.GoalWeights, out *Outcome) {
	seen := map[string]bool{}
	for _, sec := range sections(s) {
		kept := (*sec.list)[:0]
		var removed []string
		for _, ex := range *sec.list {
			k := key(ex.Movement)
			if ex.Placeholder || !seen[k] {
				seen[k] = true
				kept = append(kept, ex)
				continue
			}
			removed = append(removed, ex.Movement)
		}
		*sec.list = kept

		for _, name := range removed {
			r := Replacement{Role: sec.role, From: name, Reason: reasonDuplicate}
			if sec.role == models.RoleWarmup || sec.role == models.RoleCooldown {
				out.Replacements = append(out.Replacements, r)
				continue
			}
			alt, ok := a.findReplacement(ctx, name, seen)
			if !ok {
				a.log.Warn("no replacement for duplicate", "movement", name, "role", sec.role)
				out.Gaps = append(out.Gaps, name)
				out.Replacements = append(out.Replacements, r)
				continue
			}
			seen[key(alt)] = true
			*sec.list = append(*sec.list, prescribe(sec.role, alt, goals))
			r.To = alt
			out.Replacements = append(out.Replacements, r)
		}
	}
}

// dedupeAgainstPrevious swaps accessory and finisher movements that were
// accessories on the previous training day. A movement with no free
// muscle-equivalent stays.
func (a *Assembler) dedupeAgainstPrevious(ctx context.Context, s *models.Session, previous []string, goals models.GoalWeights, out *Outcome) {
	if len(previous) == 0 {
		return
	}
	prev := map[string]bool{}
	for _, n := range previous {
		prev[key(n)] = true
	}
	avoid := sessionNames(s)
	for k := range prev {
		avoid[k] = true
	}

	swap := func(role models.Role, list []models.ExerciseAssignment) {
		for i, ex := range list {
			if !prev[key(ex.Movement)] {
				continue
			}
			alt, ok := a.findReplacement(ctx, ex.Movement, avoid)
			if !ok {
				a.log.Debug("kept repeated accessory, no alternative", "movement", ex.Movement)
				continue
			}
			avoid[key(alt)] = true
			out.Replacements = append(out.Replacements, Replacement{
				Role: role, From: ex.Movement, To: alt, Reason: reasonRecentAccessory,
			})
			order := ex.Order
			list[i] = prescribe(role, alt, goals)
			list[i].Order = order
		}
	}
	swap(models.RoleAccessory, s.Accessory)
	if s.Finisher != nil {
		swap(models.RoleFinisher, s.Finisher.Exercises)
	}
}

// findReplacement looks for an alternative by the removed movement's primary
// and secondary muscles, then by its pattern.
func (a *Assembler) findReplacement(ctx context.Context, name string, used map[string]bool) (string, bool) {
	found, err := a.catalog.Lookup(ctx, []string{name})
	if err != nil {
		a.log.Warn("catalog lookup failed during replacement", "movement", name, "error", err)
		return "", false
	}
	mv, ok := found[name]
	if !ok {
		return "", false
	}
	muscles := append([]string{mv.PrimaryMuscle}, mv.SecondaryMuscles...)
	for _, m := range muscles {
		if alt, ok := firstFree(muscleAlternatives[m], used); ok {
			return alt, true
		}
	}
	return firstFree(patternAlternatives[mv.Pattern], used)
}

func firstFree(candidates []string, used map[string]bool) (string, bool) {
	for _, c := range candidates {
		if !used[key(c)] {
			return c, true
		}
	}
	return "", false
}
