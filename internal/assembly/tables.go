package assembly

import (
	"sort"

	"github.com/shourjoguha/alloy/internal/models"
)

// Static lookup tables. Every name here exists in the built-in catalog.

// accessoryCandidates are tried in order for each target pattern.
var accessoryCandidates = map[string][]string{
	models.PatternSquat:          {"Leg Extension", "Leg Press", "Goblet Squat"},
	models.PatternHinge:          {"Leg Curl", "Back Extension", "Glute Bridge"},
	models.PatternLunge:          {"Step-Up", "Calf Raise", "Reverse Lunge"},
	models.PatternHorizontalPush: {"Dumbbell Fly", "Triceps Pushdown", "Push-Up"},
	models.PatternVerticalPush:   {"Lateral Raise", "Overhead Triceps Extension", "Arnold Press"},
	models.PatternHorizontalPull: {"Face Pull", "Rear Delt Fly", "Chest-Supported Row"},
	models.PatternVerticalPull:   {"Biceps Curl", "Straight-Arm Pulldown", "Hammer Curl"},
	models.PatternCore:           {"Plank", "Dead Bug", "Pallof Press"},
}

// muscleAlternatives drive replacement of a removed movement by the muscles it trained.
var muscleAlternatives = map[string][]string{
	"quadriceps":  {"Leg Press", "Goblet Squat", "Leg Extension", "Split Squat"},
	"hamstrings":  {"Leg Curl", "Romanian Deadlift", "Nordic Curl"},
	"glutes":      {"Hip Thrust", "Glute Bridge", "Step-Up"},
	"calves":      {"Calf Raise", "Seated Calf Raise"},
	"lower_back":  {"Back Extension", "Hip Hinge Drill"},
	"chest":       {"Dumbbell Bench Press", "Push-Up", "Dumbbell Fly", "Cable Crossover"},
	"front_delts": {"Dumbbell Shoulder Press", "Arnold Press"},
	"side_delts":  {"Lateral Raise", "Cable Lateral Raise"},
	"rear_delts":  {"Face Pull", "Rear Delt Fly", "Band Pull-Apart"},
	"lats":        {"Lat Pulldown", "Pull-Up", "Straight-Arm Pulldown"},
	"upper_back":  {"Seated Cable Row", "Chest-Supported Row", "Face Pull"},
	"biceps":      {"Biceps Curl", "Hammer Curl"},
	"triceps":     {"Triceps Pushdown", "Overhead Triceps Extension", "Dips"},
	"core":        {"Plank", "Dead Bug", "Hanging Leg Raise", "Pallof Press"},
	"forearms":    {"Farmer Carry", "Hammer Curl"},
	"full_body":   {"Burpee", "Kettlebell Complex", "Mountain Climber"},
}

// patternAlternatives are the fallback when no muscle alternative is free.
var patternAlternatives = map[string][]string{
	models.PatternSquat:          {"Goblet Squat", "Leg Press", "Front Squat"},
	models.PatternHinge:          {"Romanian Deadlift", "Hip Thrust", "Back Extension"},
	models.PatternLunge:          {"Split Squat", "Walking Lunge", "Step-Up"},
	models.PatternHorizontalPush: {"Dumbbell Bench Press", "Push-Up", "Dips"},
	models.PatternVerticalPush:   {"Dumbbell Shoulder Press", "Arnold Press"},
	models.PatternHorizontalPull: {"Seated Cable Row", "Chest-Supported Row", "Band Pull-Apart"},
	models.PatternVerticalPull:   {"Lat Pulldown", "Straight-Arm Pulldown"},
	models.PatternCore:           {"Dead Bug", "Plank", "Hanging Leg Raise"},
	models.PatternRotation:       {"Pallof Press"},
	models.PatternCarry:          {"Farmer Carry"},
	models.PatternConditioning:   {"Burpee", "Mountain Climber", "Assault Bike Sprint"},
	models.PatternIsolation:      {"Lateral Raise", "Biceps Curl", "Triceps Pushdown", "Calf Raise"},
}

// template is a full static fallback for one archetype.
type template struct {
	main      []string
	accessory []string
}

var staticTemplates = map[models.SessionType]template{
	models.SessionUpper: {
		main:      []string{"Bench Press", "Barbell Row"},
		accessory: []string{"Lateral Raise", "Face Pull", "Biceps Curl"},
	},
	models.SessionLower: {
		main:      []string{"Back Squat", "Romanian Deadlift"},
		accessory: []string{"Leg Curl", "Calf Raise", "Plank"},
	},
	models.SessionLegs: {
		main:      []string{"Back Squat", "Romanian Deadlift"},
		accessory: []string{"Walking Lunge", "Leg Curl", "Calf Raise"},
	},
	models.SessionPush: {
		main:      []string{"Bench Press", "Overhead Press"},
		accessory: []string{"Triceps Pushdown", "Lateral Raise"},
	},
	models.SessionPull: {
		main:      []string{"Pull-Up", "Barbell Row"},
		accessory: []string{"Face Pull", "Biceps Curl"},
	},
	models.SessionFullBody: {
		main:      []string{"Back Squat", "Bench Press", "Barbell Row"},
		accessory: []string{"Face Pull", "Plank"},
	},
}

func templateFor(t models.SessionType) template {
	if tpl, ok := staticTemplates[t]; ok {
		return tpl
	}
	return staticTemplates[models.SessionFullBody]
}

// Warmup and cooldown building blocks.
const (
	warmupBase   = "Light Cardio Ramp-Up"
	cooldownBase = "Easy Walk"
)

var warmupDrills = map[string]string{
	models.PatternSquat:          "Bodyweight Squat",
	models.PatternHinge:          "Hip Hinge Drill",
	models.PatternLunge:          "Reverse Lunge",
	models.PatternHorizontalPush: "Push-Up",
	models.PatternVerticalPush:   "Wall Slide",
	models.PatternHorizontalPull: "Band Pull-Apart",
	models.PatternVerticalPull:   "Scapular Pull-Up",
}

var cooldownStretches = map[string]string{
	models.PatternSquat:          "Quad Stretch",
	models.PatternHinge:          "Hamstring Stretch",
	models.PatternLunge:          "Hip Flexor Stretch",
	models.PatternHorizontalPush: "Doorway Pec Stretch",
	models.PatternVerticalPush:   "Cross-Body Shoulder Stretch",
	models.PatternHorizontalPull: "Cross-Body Shoulder Stretch",
	models.PatternVerticalPull:   "Lat Stretch",
	models.PatternCore:           "Child's Pose",
	models.PatternCardio:         "Calf Stretch",
	models.PatternConditioning:   "Child's Pose",
	models.PatternMobility:       "Child's Pose",
}

// Conditioning-day templates.
var conditioningBlocks = map[models.SessionType][]string{
	models.SessionCardio:   {"Zone 2 Run", "Steady Bike"},
	models.SessionCustom:   {"Rowing Intervals", "Kettlebell Complex"},
	models.SessionMobility: {"Mobility Flow"},
}

// finisherTemplates keyed by the dominant cardio-side goal.
var finisherTemplates = map[models.Goal]models.Finisher{
	models.GoalFatLoss: {
		Kind:      "circuit",
		Rounds:    3,
		Minutes:   10,
		Exercises: exercises(models.RoleFinisher, "Kettlebell Swing", "Burpee", "Mountain Climber"),
	},
	models.GoalEndurance: {
		Kind:      "intervals",
		Rounds:    6,
		Minutes:   12,
		Exercises: exercises(models.RoleFinisher, "Assault Bike Sprint"),
	},
}

// defaultFinisher is used when neither cardio-side goal is present.
var defaultFinisher = models.Finisher{
	Kind:      "amrap",
	Rounds:    1,
	Minutes:   8,
	Exercises: exercises(models.RoleFinisher, "Farmer Carry", "Mountain Climber"),
}

// Target muscle volume per archetype, in weekly-set-like units.
var archetypeVolume = map[models.SessionType]map[string]float64{
	models.SessionUpper: {
		"chest": 6, "upper_back": 6, "lats": 4, "front_delts": 3,
		"side_delts": 3, "biceps": 3, "triceps": 3, "rear_delts": 2,
	},
	models.SessionLower: {"quadriceps": 8, "hamstrings": 6, "glutes": 6, "calves": 3, "core": 2},
	models.SessionLegs:  {"quadriceps": 8, "hamstrings": 6, "glutes": 6, "calves": 3, "core": 2},
	models.SessionPush:  {"chest": 8, "front_delts": 4, "side_delts": 4, "triceps": 5},
	models.SessionPull:  {"lats": 7, "upper_back": 7, "rear_delts": 3, "biceps": 5},
	models.SessionFullBody: {
		"quadriceps": 4, "hamstrings": 3, "glutes": 3, "chest": 4,
		"upper_back": 4, "lats": 3, "core": 2,
	},
}

// Catalog disciplines that serve each goal. Mobility has none.
var goalDisciplines = map[models.Goal][]string{
	models.GoalStrength:    {"powerlifting", "weightlifting"},
	models.GoalHypertrophy: {"bodybuilding"},
	models.GoalEndurance:   {"endurance"},
	models.GoalFatLoss:     {"conditioning"},
}

// disciplinesFor lists the disciplines of the program's goals, heaviest goal first.
func disciplinesFor(goals models.GoalWeights) []string {
	ordered := append(models.GoalWeights(nil), goals...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Weight > ordered[j].Weight })
	seen := map[string]bool{}
	var out []string
	for _, gw := range ordered {
		if gw.Weight <= 0 {
			continue
		}
		for _, d := range goalDisciplines[gw.Goal] {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// regionFor maps an archetype to the catalog region used for draft generation.
func regionFor(t models.SessionType) string {
	switch t {
	case models.SessionUpper, models.SessionPush, models.SessionPull:
		return models.RegionUpper
	case models.SessionLower, models.SessionLegs:
		return models.RegionLower
	}
	return models.RegionFull
}

// placeholderName marks a session whose draft produced nothing usable.
const placeholderName = "Generation failed - regenerate this session"
