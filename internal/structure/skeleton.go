package structure

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/models"
)

// Builder produces microcycle skeletons from a validated program.
type Builder struct {
	cfg config.Snapshot
	log *slog.Logger
}

// NewBuilder creates a Builder bound to one configuration snapshot.
func NewBuilder(cfg config.Snapshot, log *slog.Logger) *Builder {
	return &Builder{cfg: cfg, log: log}
}

// CycleLengths partitions the program's days, using the configured default
// cycle length when the program has no preference.
func (b *Builder) CycleLengths(p *models.Program) []int {
	preferred := p.PreferredCycleLength
	if preferred <= 0 {
		preferred = b.cfg.DefaultCycleLength()
	}
	return Partition(p.TotalDays(), preferred)
}

// Build lays out every microcycle of the program with its sessions. The first
// microcycle is ACTIVE, the rest PLANNED; all generation is PENDING.
func (b *Builder) Build(p *models.Program) ([]models.Microcycle, error) {
	lengths := b.CycleLengths(p)
	if len(lengths) == 0 {
		return nil, fmt.Errorf("program %s has no days to partition", p.ID)
	}

	cycles := make([]models.Microcycle, 0, len(lengths))
	start := p.StartDate
	for i, length := range lengths {
		mc := models.Microcycle{
			ID:               uuid.New(),
			ProgramID:        p.ID,
			Sequence:         i + 1,
			StartDate:        start,
			LengthDays:       length,
			Status:           models.CyclePlanned,
			IsDeload:         p.DeloadEvery > 0 && (i+1)%p.DeloadEvery == 0,
			GenerationStatus: models.GenPending,
		}
		if i == 0 {
			mc.Status = models.CycleActive
		}

		alloc := Allocate(AssignDays(length, p.DaysPerWeek), AllocateInput{
			Goals:             p.Goals,
			MaxSessionMinutes: p.MaxSessionMinutes,
			Preferences:       p.Preferences,
		}, b.cfg)
		notes := alloc.Notes
		if mc.IsDeload {
			notes = append(notes, "deload cycle: reduced volume")
		}
		mc.BiasNotes = strings.Join(notes, "\n")
		mc.Sessions = b.sessions(&mc, alloc.Days, p.MaxSessionMinutes)

		b.log.Debug("microcycle laid out",
			"program_id", p.ID,
			"sequence", mc.Sequence,
			"length_days", length,
			"converted", alloc.Converted,
			"deload", mc.IsDeload,
		)
		cycles = append(cycles, mc)
		start = start.AddDate(0, 0, length)
	}
	return cycles, nil
}

func (b *Builder) sessions(mc *models.Microcycle, days []DayPlan, maxMinutes int) []models.Session {
	out := make([]models.Session, 0, len(days))
	for _, d := range days {
		s := models.Session{
			ID:               uuid.New(),
			MicrocycleID:     mc.ID,
			DayNumber:        d.Day,
			Date:             mc.StartDate.AddDate(0, 0, d.Day-1),
			Type:             d.Type,
			Patterns:         d.Patterns,
			Tags:             d.Tags,
			GenerationStatus: models.GenPending,
		}
		switch {
		case s.IsRecovery():
		case s.IsConditioning():
			s.EstimatedMinutes = min(b.cfg.MinutesPerCardioDay(), maxMinutes)
		default:
			s.EstimatedMinutes = maxMinutes
		}
		out = append(out, s)
	}
	return out
}
