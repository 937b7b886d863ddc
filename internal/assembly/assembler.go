// Package assembly fills a session with exercises: a draft from the optimizer
// or the heuristic fallbacks, then warmup and cooldown, accessory/finisher
// exclusivity, and intra- and cross-session deduplication.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/optimizer"
)

// ErrTooManyMissing is returned when more than missingTolerance of the
// optimizer's selection cannot be found in the catalog.
var ErrTooManyMissing = errors.New("too many selected movements missing from catalog")

const (
	missingTolerance = 0.10
	maxAccessories   = 3
)

// Source is where a session's main content came from.
type Source string

const (
	SourceRecovery     Source = "recovery"
	SourceConditioning Source = "conditioning_template"
	SourceOptimizer    Source = "optimizer"
	SourceHeuristic    Source = "heuristic"
	SourceTemplate     Source = "static_template"
	SourcePlaceholder  Source = "placeholder"
)

// Input is the per-session view of the running diversity and fatigue state.
type Input struct {
	Goals               models.GoalWeights
	MaxSessionMinutes   int
	Rules               models.MovementRules
	Deload              bool
	UsedMovements       map[string]bool // keyed by catalog.Key
	UsedGroups          map[string]int
	PreviousAccessories []string // accessory names of the previous training day
	PreviousDayVolume   map[string]float64
}

// Outcome describes how a session was assembled.
type Outcome struct {
	Source          Source           `json:"source"`
	OptimizerStatus optimizer.Status `json:"optimizer_status,omitempty"`
	Missing         []string         `json:"missing,omitempty"`
	Replacements    []Replacement    `json:"replacements,omitempty"`
	Gaps            []string         `json:"gaps,omitempty"`
}

// Assembler builds session content. It holds no per-run state and may be
// shared by concurrent microcycle runs.
type Assembler struct {
	catalog catalog.Catalog
	opt     optimizer.Optimizer
	cfg     config.Snapshot
	log     *slog.Logger
}

// New creates an Assembler.
func New(cat catalog.Catalog, opt optimizer.Optimizer, cfg config.Snapshot, log *slog.Logger) *Assembler {
	if opt == nil {
		opt = optimizer.Disabled{}
	}
	return &Assembler{catalog: cat, opt: opt, cfg: cfg, log: log}
}

// Assemble replaces the session's content. On error the session content is
// unspecified and the caller marks it failed.
func (a *Assembler) Assemble(ctx context.Context, s *models.Session, in Input) (Outcome, error) {
	s.ClearContent()

	if s.IsRecovery() {
		return Outcome{Source: SourceRecovery}, nil
	}
	if s.IsConditioning() {
		a.conditioning(s, in)
		return Outcome{Source: SourceConditioning}, nil
	}

	out, err := a.draft(ctx, s, in)
	if err != nil {
		return out, err
	}

	synthesizeWarmup(s)
	synthesizeCooldown(s)
	offerFinisher(s, in.Goals, a.cfg.FinisherThreshold())
	enforceExclusivity(s, in.Goals)

	a.dedupe(ctx, s, in.Goals, &out)
	a.dedupeAgainstPrevious(ctx, s, in.PreviousAccessories, in.Goals, &out)
	enforceExclusivity(s, in.Goals)

	if len(s.Main) == 0 {
		a.log.Warn("main block empty after assembly, using static template", "day", s.DayNumber, "type", s.Type)
		a.applyTemplate(s, in)
		out.Source = SourceTemplate
	}

	if in.Deload {
		applyDeload(s)
		s.AppendNote("Deload: one set less per exercise and lighter effort.")
	}
	fitToBudget(s, in.MaxSessionMinutes)
	renumber(s)
	s.EstimatedMinutes = estimateMinutes(s)
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("assembling day %d: %w", s.DayNumber, err)
	}
	return out, nil
}

// draft fills Main and Accessory from the optimizer or the fallbacks.
func (a *Assembler) draft(ctx context.Context, s *models.Session, in Input) (Outcome, error) {
	var out Outcome

	res, err := a.opt.Select(ctx, a.request(ctx, s, in))
	out.OptimizerStatus = res.Status
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("draft generation for day %d: %w", s.DayNumber, ctxErr)
	}

	if err == nil && res.Status.Usable() && len(res.Selected) > 0 {
		missing, err := a.applySelection(ctx, s, res.Selected, in)
		out.Missing = missing
		if err != nil {
			return out, err
		}
		out.Source = SourceOptimizer
		if len(s.Main) == 1 && s.Main[0].Placeholder {
			out.Source = SourcePlaceholder
		}
		return out, nil
	}

	if err != nil && !errors.Is(err, optimizer.ErrDisabled) {
		a.log.Warn("optimizer failed, using heuristic", "day", s.DayNumber, "status", res.Status, "error", err)
	}
	if err := a.heuristic(ctx, s, in); err != nil {
		a.log.Warn("heuristic selection failed", "day", s.DayNumber, "error", err)
	}
	if len(s.Main) > 0 {
		out.Source = SourceHeuristic
		return out, nil
	}
	a.applyTemplate(s, in)
	out.Source = SourceTemplate
	return out, nil
}

// request builds the optimizer call for a lifting session.
func (a *Assembler) request(ctx context.Context, s *models.Session, in Input) optimizer.Request {
	movements, err := a.catalog.Movements(ctx, catalog.Filter{Region: regionFor(s.Type)})
	if err != nil {
		a.log.Warn("catalog query failed", "day", s.DayNumber, "error", err)
	}
	available := movements[:0:0]
	for _, mv := range movements {
		switch mv.Pattern {
		case models.PatternCardio, models.PatternMobility:
			continue
		}
		available = append(available, mv)
	}

	excluded := append([]string(nil), in.Rules.Excluded...)
	for _, mv := range available {
		if in.UsedMovements[key(mv.Name)] {
			excluded = append(excluded, mv.Name)
		}
	}

	return optimizer.Request{
		Movements:       available,
		TargetVolume:    targetVolume(s.Type, in.PreviousDayVolume),
		Excluded:        excluded,
		Required:        in.Rules.Required,
		Preferred:       in.Rules.Preferred,
		Goals:           in.Goals,
		DurationMinutes: in.MaxSessionMinutes,
		Disciplines:     disciplinesFor(in.Goals),
	}
}

// targetVolume lowers the archetype's targets for muscles still loaded from the previous day.
func targetVolume(t models.SessionType, previous map[string]float64) map[string]float64 {
	base, ok := archetypeVolume[t]
	if !ok {
		base = archetypeVolume[models.SessionFullBody]
	}
	out := make(map[string]float64, len(base))
	for m, v := range base {
		v -= previous[m] * 0.5
		if v > 0 {
			out[m] = v
		}
	}
	return out
}

// applySelection resolves the optimizer's names and classifies them. Names the
// program excludes are dropped; a selection left with nothing gets the
// placeholder MAIN entry.
func (a *Assembler) applySelection(ctx context.Context, s *models.Session, selected []string, in Input) ([]string, error) {
	goals := in.Goals
	found, err := a.catalog.Lookup(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("resolving selection: %w", err)
	}
	var missing []string
	for _, n := range selected {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}
	if float64(len(missing)) > missingTolerance*float64(len(selected)) {
		return missing, fmt.Errorf("day %d: %d of %d: %w", s.DayNumber, len(missing), len(selected), ErrTooManyMissing)
	}
	if len(missing) > 0 {
		a.log.Warn("selected movements missing from catalog", "day", s.DayNumber, "missing", missing)
	}

	var dropped []string
	for _, n := range selected {
		mv, ok := found[n]
		if !ok {
			continue
		}
		if excludedByRules(mv.Name, in.Rules) {
			dropped = append(dropped, mv.Name)
			continue
		}
		if mv.Compound && mv.ComplexLift {
			s.Main = append(s.Main, prescribe(models.RoleMain, mv.Name, goals))
		} else {
			s.Accessory = append(s.Accessory, prescribe(models.RoleAccessory, mv.Name, goals))
		}
	}
	if len(dropped) > 0 {
		a.log.Warn("optimizer selected excluded movements", "day", s.DayNumber, "dropped", dropped)
	}
	if len(s.Main) == 0 && len(s.Accessory) > 0 {
		promoted := prescribe(models.RoleMain, s.Accessory[0].Movement, goals)
		s.Main = append(s.Main, promoted)
		s.Accessory = s.Accessory[1:]
	}
	if len(s.Main) == 0 {
		s.Main = []models.ExerciseAssignment{{
			Role:        models.RoleMain,
			Movement:    placeholderName,
			Placeholder: true,
		}}
		s.AppendNote("Movement selection failed for this session; regenerate it.")
	}
	return missing, nil
}

// heuristic picks, per target pattern, the first unused catalog movement for
// MAIN and the first free accessory candidate for ACCESSORY.
func (a *Assembler) heuristic(ctx context.Context, s *models.Session, in Input) error {
	inSession := map[string]bool{}
	for _, p := range s.Patterns {
		candidates, err := a.catalog.Movements(ctx, catalog.Filter{Pattern: p})
		if err != nil {
			return fmt.Errorf("catalog query for %s: %w", p, err)
		}
		rankCandidates(candidates, in.UsedGroups)
		for _, mv := range candidates {
			k := key(mv.Name)
			if in.UsedMovements[k] || inSession[k] || excludedByRules(mv.Name, in.Rules) {
				continue
			}
			inSession[k] = true
			s.Main = append(s.Main, prescribe(models.RoleMain, mv.Name, in.Goals))
			break
		}
	}

	// Up to two rounds over the patterns, one accessory per pattern per round.
	for round := 0; round < 2 && len(s.Accessory) < maxAccessories; round++ {
		for _, p := range s.Patterns {
			if len(s.Accessory) >= maxAccessories {
				break
			}
			if name, ok := pickAccessory(accessoryCandidates[p], inSession, in); ok {
				inSession[key(name)] = true
				s.Accessory = append(s.Accessory, prescribe(models.RoleAccessory, name, in.Goals))
			}
		}
	}
	return nil
}

// rankCandidates prefers compound lifts from the least used substitution groups.
func rankCandidates(candidates []models.Movement, groups map[string]int) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Compound != cj.Compound {
			return ci.Compound
		}
		return groups[ci.SubstitutionGroup] < groups[cj.SubstitutionGroup]
	})
}

// pickAccessory prefers a candidate unused this microcycle, then any candidate not in the session.
func pickAccessory(candidates []string, inSession map[string]bool, in Input) (string, bool) {
	for _, c := range candidates {
		if !inSession[key(c)] && !in.UsedMovements[key(c)] && !excludedByRules(c, in.Rules) {
			return c, true
		}
	}
	for _, c := range candidates {
		if !inSession[key(c)] && !excludedByRules(c, in.Rules) {
			return c, true
		}
	}
	return "", false
}

func excludedByRules(name string, rules models.MovementRules) bool {
	for _, ex := range rules.Excluded {
		if key(ex) == key(name) {
			return true
		}
	}
	return false
}

// applyTemplate replaces the whole session with the archetype's static template.
func (a *Assembler) applyTemplate(s *models.Session, in Input) {
	tpl := templateFor(s.Type)
	s.ClearContent()
	s.Main = prescribeAll(models.RoleMain, tpl.main, in.Goals)
	s.Accessory = prescribeAll(models.RoleAccessory, tpl.accessory, in.Goals)
	synthesizeWarmup(s)
	synthesizeCooldown(s)
}

// conditioning fills a cardio, mobility or conditioning day from a fixed template.
func (a *Assembler) conditioning(s *models.Session, in Input) {
	blocks := conditioningBlocks[s.Type]
	if s.Type == models.SessionCustom || len(blocks) == 0 {
		blocks = conditioningBlocks[models.SessionCustom]
	}

	s.Warmup = prescribeAll(models.RoleWarmup, []string{warmupBase}, nil)
	cooldown := []string{cooldownBase}
	for _, p := range s.Patterns {
		if st, ok := cooldownStretches[p]; ok && !contains(cooldown, st) {
			cooldown = append(cooldown, st)
		}
	}
	s.Cooldown = prescribeAll(models.RoleCooldown, cooldown, nil)

	budget := in.MaxSessionMinutes*60 - sumSeconds(s.Warmup) - sumSeconds(s.Cooldown)
	if budget < 10*60 {
		budget = 10 * 60
	}
	// Two blocks when there is room for two meaningful efforts.
	n := 1
	if len(blocks) > 1 && budget >= 40*60 {
		n = 2
	}
	for i := 0; i < n; i++ {
		s.Main = append(s.Main, models.ExerciseAssignment{
			Role:            models.RoleMain,
			Movement:        blocks[i],
			DurationSeconds: budget / n,
		})
	}
	s.Accessory = nil
	s.Finisher = nil
	renumber(s)
	s.EstimatedMinutes = estimateMinutes(s)
}

func sumSeconds(list []models.ExerciseAssignment) int {
	total := 0
	for _, a := range list {
		total += assignmentSeconds(a)
	}
	return total
}
