package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/spf13/cobra"
)

// programFlags describes a program on the command line.
type programFlags struct {
	name        string
	weeks       int
	days        int
	minutes     int
	deloadEvery int
	cycleLength int
	start       string
	goals       []string
	cardio      string
	avoidCardio bool
	required    []string
	excluded    []string
	preferred   []string
}

func (f *programFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "Training block", "program name")
	flags.IntVar(&f.weeks, "weeks", 8, "program length in weeks (8, 10 or 12)")
	flags.IntVar(&f.days, "days", 4, "training days per week")
	flags.IntVar(&f.minutes, "minutes", 60, "maximum session length in minutes")
	flags.IntVar(&f.deloadEvery, "deload-every", 0, "make every Nth microcycle a deload (0 disables)")
	flags.IntVar(&f.cycleLength, "cycle-length", 0, "preferred microcycle length in days (0 uses the default)")
	flags.StringVar(&f.start, "start", "", "start date YYYY-MM-DD (defaults to next Monday)")
	flags.StringArrayVar(&f.goals, "goal", []string{"strength=1"}, "goal and weight, e.g. --goal strength=2 --goal fat_loss=1")
	flags.StringVar(&f.cardio, "cardio", "", "cardio day policy: auto, dedicated or never")
	flags.BoolVar(&f.avoidCardio, "avoid-cardio-days", false, "never give cardio its own day")
	flags.StringSliceVar(&f.required, "require", nil, "movements that must appear")
	flags.StringSliceVar(&f.excluded, "exclude", nil, "movements that must not appear")
	flags.StringSliceVar(&f.preferred, "prefer", nil, "movements to favour")
}

func (f *programFlags) program(now time.Time) (*models.Program, error) {
	goals, err := parseGoals(f.goals)
	if err != nil {
		return nil, err
	}
	start := nextMonday(now)
	if f.start != "" {
		start, err = time.Parse("2006-01-02", f.start)
		if err != nil {
			return nil, fmt.Errorf("parsing --start: %w", err)
		}
	}
	cardio := models.CardioDedication(f.cardio)
	if cardio == "" {
		cardio = models.CardioAuto
	}
	p := &models.Program{
		ID:                   uuid.New(),
		Name:                 f.name,
		DurationWeeks:        f.weeks,
		Goals:                goals,
		DaysPerWeek:          f.days,
		MaxSessionMinutes:    f.minutes,
		DeloadEvery:          f.deloadEvery,
		PreferredCycleLength: f.cycleLength,
		StartDate:            start,
		Preferences: models.SchedulingPreferences{
			CardioDedication: cardio,
			AvoidCardioDays:  f.avoidCardio,
		},
		Rules: models.MovementRules{
			Required:  f.required,
			Excluded:  f.excluded,
			Preferred: f.preferred,
		},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseGoals reads goal=weight pairs. A bare goal gets weight 1.
func parseGoals(raw []string) (models.GoalWeights, error) {
	var out models.GoalWeights
	for _, item := range raw {
		name, weight, found := strings.Cut(item, "=")
		w := 1.0
		if found {
			var err error
			w, err = strconv.ParseFloat(weight, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing weight for goal %q: %w", name, err)
			}
		}
		out = append(out, models.GoalWeight{Goal: models.Goal(strings.TrimSpace(name)), Weight: w})
	}
	return out, nil
}

func nextMonday(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (8 - int(d.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}
	return d.AddDate(0, 0, offset)
}
