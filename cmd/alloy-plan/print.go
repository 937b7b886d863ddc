package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shourjoguha/alloy/internal/models"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

func printProgramHeader(w io.Writer, p *models.Program) {
	goals := make([]string, 0, len(p.Goals))
	for _, g := range p.SortedGoals() {
		goals = append(goals, fmt.Sprintf("%s %.0f%%", g.Goal, p.Goals.Share(g.Goal)*100))
	}
	fmt.Fprintf(w, "%s %s\n", headerColor(p.Name), dimColor(p.ID.String()))
	fmt.Fprintf(w, "  %d weeks from %s, %d days/week, %d min sessions\n",
		p.DurationWeeks, p.StartDate.Format("2006-01-02"), p.DaysPerWeek, p.MaxSessionMinutes)
	fmt.Fprintf(w, "  goals: %s\n\n", strings.Join(goals, ", "))
}

func cycleTitle(mc models.Microcycle) string {
	title := fmt.Sprintf("Microcycle %d  %s  %d days", mc.Sequence, mc.StartDate.Format("2006-01-02"), mc.LengthDays)
	if mc.IsDeload {
		title += " " + warnColor("[deload]")
	}
	return headerColor(title)
}

func printSkeleton(w io.Writer, p *models.Program, cycles []models.Microcycle) {
	printProgramHeader(w, p)
	for _, mc := range cycles {
		fmt.Fprintln(w, cycleTitle(mc))
		for _, s := range mc.Sessions {
			line := fmt.Sprintf("  day %2d  %-10s", s.DayNumber, s.Type)
			if len(s.Patterns) > 0 {
				line += " " + strings.Join(s.Patterns, ", ")
			}
			if len(s.Tags) > 0 {
				line += " " + dimColor("("+strings.Join(s.Tags, ", ")+")")
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
}

func printGenerated(w io.Writer, p *models.Program, cycles []models.Microcycle) {
	printProgramHeader(w, p)
	for _, mc := range cycles {
		fmt.Fprintln(w, cycleTitle(mc))
		for _, s := range mc.Sessions {
			fmt.Fprintf(w, "  day %2d  %-10s %s\n", s.DayNumber, s.Type, statusLabel(s.GenerationStatus))
			printBlock(w, "warmup", s.Warmup)
			printBlock(w, "main", s.Main)
			printBlock(w, "accessory", s.Accessory)
			if s.Finisher != nil {
				fmt.Fprintf(w, "          %-10s %s, %d rounds, %d min\n", "finisher", s.Finisher.Kind, s.Finisher.Rounds, s.Finisher.Minutes)
				printBlock(w, "", s.Finisher.Exercises)
			}
			printBlock(w, "cooldown", s.Cooldown)
			if s.CoachNotes != "" {
				fmt.Fprintf(w, "          %s\n", dimColor(s.CoachNotes))
			}
		}
		fmt.Fprintln(w)
	}
}

func printBlock(w io.Writer, label string, list []models.ExerciseAssignment) {
	for i, a := range list {
		name := label
		if i > 0 {
			name = ""
		}
		fmt.Fprintf(w, "          %-10s %s\n", name, prescription(a))
	}
}

func prescription(a models.ExerciseAssignment) string {
	switch {
	case a.Placeholder:
		return dimColor(a.Movement + " (placeholder)")
	case a.Sets > 0 && a.RepMin > 0:
		reps := fmt.Sprintf("%d", a.RepMin)
		if a.RepMax > a.RepMin {
			reps = fmt.Sprintf("%d-%d", a.RepMin, a.RepMax)
		}
		out := fmt.Sprintf("%s %dx%s", a.Movement, a.Sets, reps)
		if a.TargetRPE > 0 {
			out += fmt.Sprintf(" @RPE %.1f", a.TargetRPE)
		}
		return out
	case a.DurationSeconds > 0:
		return fmt.Sprintf("%s %ds", a.Movement, a.DurationSeconds)
	default:
		return a.Movement
	}
}

func statusLabel(s models.GenerationStatus) string {
	switch s {
	case models.GenCompleted:
		return successColor(string(s))
	case models.GenFailed:
		return errorColor(string(s))
	default:
		return warnColor(string(s))
	}
}
