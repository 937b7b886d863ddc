package structure

import (
	"fmt"
	"math"
	"strings"

	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
)

// Bucket is a category of training time.
type Bucket string

const (
	BucketCardio       Bucket = "cardio"
	BucketConditioning Bucket = "conditioning"
	BucketMobility     Bucket = "mobility"
	BucketLifting      Bucket = "lifting"
)

// minLiftingDays is the floor of lifting days that conversion never crosses.
const minLiftingDays = 2

// goalBuckets scores each goal's pull on the four buckets, out of 10.
var goalBuckets = map[models.Goal]map[Bucket]float64{
	models.GoalStrength:    {BucketCardio: 0.5, BucketConditioning: 0.5, BucketMobility: 1, BucketLifting: 8},
	models.GoalHypertrophy: {BucketCardio: 0.5, BucketConditioning: 1, BucketMobility: 0.5, BucketLifting: 8},
	models.GoalEndurance:   {BucketCardio: 5, BucketConditioning: 2, BucketMobility: 1, BucketLifting: 2},
	models.GoalFatLoss:     {BucketCardio: 3, BucketConditioning: 3, BucketMobility: 1, BucketLifting: 3},
	models.GoalMobility:    {BucketCardio: 1, BucketConditioning: 0, BucketMobility: 6, BucketLifting: 3},
}

// Buckets holds minutes per bucket for one microcycle.
type Buckets struct {
	Cardio       int `json:"cardio"`
	Conditioning int `json:"conditioning"`
	Mobility     int `json:"mobility"`
	Lifting      int `json:"lifting"`
}

// AllocateInput is what the allocator needs from the program.
type AllocateInput struct {
	Goals             models.GoalWeights
	MaxSessionMinutes int
	Preferences       models.SchedulingPreferences
}

// Allocation is the allocator's output for one cycle.
type Allocation struct {
	Days      []DayPlan
	Buckets   Buckets
	Converted []int
	Notes     []string
}

// BiasNotes joins the rationale lines.
func (a Allocation) BiasNotes() string {
	return strings.Join(a.Notes, "\n")
}

// BucketScores accumulates the weighted 0–10 score of every bucket.
func BucketScores(goals models.GoalWeights) map[Bucket]float64 {
	scores := map[Bucket]float64{}
	for goal, share := range goals.Shares() {
		for bucket, v := range goalBuckets[goal] {
			scores[bucket] += share * v
		}
	}
	return scores
}

// Allocate splits the cycle's training time across buckets, converts a bounded
// number of lifting days into dedicated cardio or conditioning days and tags
// the remaining lifting days with an accessory or finisher preference.
// The input days are not modified.
func Allocate(days []DayPlan, in AllocateInput, cfg config.Snapshot) Allocation {
	out := Allocation{Days: make([]DayPlan, len(days))}
	for i, d := range days {
		d.Patterns = append([]string(nil), d.Patterns...)
		d.Tags = append([]string(nil), d.Tags...)
		out.Days[i] = d
	}

	training := 0
	for _, d := range out.Days {
		if d.Training() {
			training++
		}
	}
	if training == 0 {
		return out
	}

	// Step 1 and 2: scores to minutes.
	scores := BucketScores(in.Goals)
	total := float64(training * in.MaxSessionMinutes)
	cardio := math.Min(total*scores[BucketCardio]/10, total*cfg.MaxCardioPct())
	mobility := math.Min(total*scores[BucketMobility]/10, total*cfg.MaxMobilityPct())
	out.Buckets = Buckets{
		Cardio:       int(math.Round(cardio)),
		Conditioning: int(math.Round(total * scores[BucketConditioning] / 10)),
		Mobility:     int(math.Round(mobility)),
		Lifting:      int(math.Round(total * scores[BucketLifting] / 10)),
	}
	out.Notes = append(out.Notes, goalMixNote(in.Goals), fmt.Sprintf(
		"bucket minutes: cardio=%d conditioning=%d mobility=%d lifting=%d",
		out.Buckets.Cardio, out.Buckets.Conditioning, out.Buckets.Mobility, out.Buckets.Lifting))

	// Step 3: dedicated days.
	remainingCardio, remainingConditioning := out.Buckets.Cardio, out.Buckets.Conditioning
	desired := desiredConversions(out.Days, in, cfg, remainingCardio+remainingConditioning, &out.Notes)
	maxConvertible := countLifting(out.Days) - minLiftingDays
	perDay := cfg.MinutesPerCardioDay()
	for i := len(out.Days) - 1; i >= 0 && desired > 0 && maxConvertible > 0; i-- {
		d := &out.Days[i]
		if !d.Lifting() || lastOfKind(out.Days, d.Type) {
			continue
		}
		from := d.Type
		if remainingCardio >= remainingConditioning {
			d.Type = models.SessionCardio
			d.Patterns = []string{models.PatternCardio}
			remainingCardio -= perDay
		} else {
			d.Type = models.SessionCustom
			d.Patterns = []string{models.PatternConditioning}
			d.addTag(models.TagConditioning)
			remainingConditioning -= perDay
		}
		out.Converted = append(out.Converted, d.Day)
		out.Notes = append(out.Notes, fmt.Sprintf("day %d: %s converted to %s", d.Day, from, d.Type))
		desired--
		maxConvertible--
	}

	// Step 4: accessory/finisher preferences on what is left.
	var lifting []int
	for i, d := range out.Days {
		if d.Lifting() {
			lifting = append(lifting, i)
		}
	}
	wantAccessory := in.Goals.LiftingPressure() > 0 && len(lifting) > 0
	leftover := max(remainingCardio, 0) + max(remainingConditioning, 0)
	if in.Goals.CardioPressure() >= cfg.FinisherThreshold() && leftover > 0 {
		limit := cfg.MaxFinisherDays()
		if wantAccessory && limit > len(lifting)-1 {
			limit = len(lifting) - 1
		}
		// Latest days take finishers so the accessory tag can sit early.
		for j := len(lifting) - 1; j >= 0 && limit > 0; j-- {
			out.Days[lifting[j]].addTag(models.TagPreferFinisher)
			out.Notes = append(out.Notes, fmt.Sprintf("day %d: prefer finisher", out.Days[lifting[j]].Day))
			limit--
		}
	}
	if wantAccessory {
		for _, idx := range lifting {
			if !out.Days[idx].hasTag(models.TagPreferFinisher) {
				out.Days[idx].addTag(models.TagPreferAccessory)
				out.Notes = append(out.Notes, fmt.Sprintf("day %d: prefer accessory", out.Days[idx].Day))
				break
			}
		}
	}
	return out
}

// desiredConversions applies the dedication policy to the minute-based estimate.
func desiredConversions(days []DayPlan, in AllocateInput, cfg config.Snapshot, minutes int, notes *[]string) int {
	lifting := countLifting(days)
	perDay := max(cfg.MinutesPerCardioDay(), 1)
	pressure := in.Goals.CardioPressure()

	blocks := int(math.Round(pressure * float64(lifting)))
	desired := min(blocks, minutes/perDay, lifting-minLiftingDays, candidateCount(days))
	if desired < 0 {
		desired = 0
	}

	forced := in.Goals.Share(models.GoalEndurance) > cfg.EnduranceHeavyThreshold() &&
		len(days) >= 10 && !in.Preferences.EnduranceHeavyOptOut

	switch {
	case in.Preferences.CardioDedication == models.CardioNever:
		if desired > 0 {
			*notes = append(*notes, "cardio dedication disabled by preference")
		}
		return 0
	case forced:
		*notes = append(*notes, "endurance-heavy program: dedicated cardio forced")
		return max(desired, 1)
	case in.Preferences.AvoidCardioDays:
		if desired > 0 {
			*notes = append(*notes, "cardio days avoided by preference")
		}
		return 0
	case in.Preferences.CardioDedication == models.CardioDedicated:
		return max(desired, 1)
	}
	return desired
}

func countLifting(days []DayPlan) int {
	n := 0
	for _, d := range days {
		if d.Lifting() {
			n++
		}
	}
	return n
}

// candidateCount counts lifting days that are not the only one of their type.
func candidateCount(days []DayPlan) int {
	n := 0
	for _, d := range days {
		if d.Lifting() && !lastOfKind(days, d.Type) {
			n++
		}
	}
	return n
}

func lastOfKind(days []DayPlan, t models.SessionType) bool {
	n := 0
	for _, d := range days {
		if d.Type == t {
			n++
		}
	}
	return n <= 1
}

func goalMixNote(goals models.GoalWeights) string {
	parts := make([]string, 0, len(goals))
	for _, g := range goals {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", g.Goal, goals.Share(g.Goal)*100))
	}
	return "goal mix: " + strings.Join(parts, ", ")
}
