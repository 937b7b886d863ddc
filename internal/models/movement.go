package models

import "strings"

// Canonical movement patterns.
const (
	PatternSquat          = "squat"
	PatternHinge          = "hinge"
	PatternLunge          = "lunge"
	PatternHorizontalPush = "horizontal_push"
	PatternVerticalPush   = "vertical_push"
	PatternHorizontalPull = "horizontal_pull"
	PatternVerticalPull   = "vertical_pull"
	PatternCarry          = "carry"
	PatternCore           = "core"
	PatternRotation       = "rotation"
	PatternConditioning   = "conditioning"
	PatternCardio         = "cardio"
	PatternMobility       = "mobility"
	PatternIsolation      = "isolation"
)

// Body regions used to filter the catalog per session.
const (
	RegionUpper = "upper"
	RegionLower = "lower"
	RegionFull  = "full"
	RegionCore  = "core"
)

// Movement is a read-only catalog entry.
type Movement struct {
	Name              string   `json:"name" yaml:"name"`
	Pattern           string   `json:"pattern" yaml:"pattern"`
	PrimaryMuscle     string   `json:"primary_muscle" yaml:"primary_muscle"`
	SecondaryMuscles  []string `json:"secondary_muscles,omitempty" yaml:"secondary_muscles"`
	Equipment         []string `json:"equipment,omitempty" yaml:"equipment"`
	Region            string   `json:"region" yaml:"region"`
	SubstitutionGroup string   `json:"substitution_group,omitempty" yaml:"substitution_group"`
	Compound          bool     `json:"compound" yaml:"compound"`
	ComplexLift       bool     `json:"complex_lift" yaml:"complex_lift"`
	Disciplines       []string `json:"disciplines,omitempty" yaml:"disciplines"`
}

// patternAliases maps lowercased source spellings to canonical patterns.
var patternAliases = map[string]string{
	"squat":           PatternSquat,
	"knee_dominant":   PatternSquat,
	"quad_dominant":   PatternSquat,
	"hinge":           PatternHinge,
	"hip_hinge":       PatternHinge,
	"hip_dominant":    PatternHinge,
	"lunge":           PatternLunge,
	"single_leg":      PatternLunge,
	"horizontal_push": PatternHorizontalPush,
	"push_horizontal": PatternHorizontalPush,
	"vertical_push":   PatternVerticalPush,
	"push_vertical":   PatternVerticalPush,
	"overhead_press":  PatternVerticalPush,
	"horizontal_pull": PatternHorizontalPull,
	"pull_horizontal": PatternHorizontalPull,
	"row":             PatternHorizontalPull,
	"vertical_pull":   PatternVerticalPull,
	"pull_vertical":   PatternVerticalPull,
	"carry":           PatternCarry,
	"loaded_carry":    PatternCarry,
	"core":            PatternCore,
	"anti_extension":  PatternCore,
	"rotation":        PatternRotation,
	"conditioning":    PatternConditioning,
	"metcon":          PatternConditioning,
	"cardio":          PatternCardio,
	"mobility":        PatternMobility,
	"isolation":       PatternIsolation,
}

// Canonical lowercases a value and collapses separators to underscores.
// "Horizontal Push", "horizontal-push" and "HORIZONTAL_PUSH" all become "horizontal_push".
func Canonical(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	// Enum-style values arrive as "MovementPattern.SQUAT".
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	s = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// NormalizePattern maps a pattern spelling to its canonical name. Returns the
// canonical form and true if recognized, or the canonicalized input and false.
func NormalizePattern(raw string) (string, bool) {
	c := Canonical(raw)
	if p, ok := patternAliases[c]; ok {
		return p, true
	}
	return c, false
}

// NormalizeMovement returns a copy with every categorical field in canonical form.
// Names keep their display casing but lose surrounding whitespace.
func NormalizeMovement(m Movement) Movement {
	out := m
	out.Name = strings.Join(strings.Fields(m.Name), " ")
	out.Pattern, _ = NormalizePattern(m.Pattern)
	out.PrimaryMuscle = Canonical(m.PrimaryMuscle)
	out.SecondaryMuscles = canonicalSlice(m.SecondaryMuscles)
	out.Equipment = canonicalSlice(m.Equipment)
	out.Disciplines = canonicalSlice(m.Disciplines)
	out.SubstitutionGroup = Canonical(m.SubstitutionGroup)
	out.Region = Canonical(m.Region)
	if out.Region == "" {
		out.Region = RegionForPattern(out.Pattern)
	}
	return out
}

// RegionForPattern infers a body region from a canonical pattern.
func RegionForPattern(pattern string) string {
	switch PatternFamily(pattern) {
	case FamilyLower:
		return RegionLower
	case FamilyPush, FamilyPull:
		return RegionUpper
	}
	if pattern == PatternCore || pattern == PatternRotation {
		return RegionCore
	}
	return RegionFull
}

// Pattern families used for rotation and interference.
const (
	FamilyLower = "lower"
	FamilyPush  = "push"
	FamilyPull  = "pull"
	FamilyOther = "other"
)

// PatternFamily returns the family of a canonical pattern.
func PatternFamily(pattern string) string {
	switch pattern {
	case PatternSquat, PatternHinge, PatternLunge:
		return FamilyLower
	case PatternHorizontalPush, PatternVerticalPush:
		return FamilyPush
	case PatternHorizontalPull, PatternVerticalPull:
		return FamilyPull
	}
	return FamilyOther
}

func canonicalSlice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, v := range in {
		c := Canonical(v)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
