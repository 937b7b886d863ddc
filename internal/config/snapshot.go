package config

import "time"

// Snapshot is an immutable view of the generation settings for one run.
// Values are copied out of GenerationConfig so later edits to the loaded
// config never leak into a run that already started.
type Snapshot struct {
	defaultCycleLength      int
	sessionTimeout          time.Duration
	maxCardioPct            float64
	maxMobilityPct          float64
	enduranceHeavyThreshold float64
	finisherThreshold       float64
	maxFinisherDays         int
	minutesPerCardioDay     int
}

// Snapshot freezes the generation settings.
func (g GenerationConfig) Snapshot() Snapshot {
	g.applyDefaults()
	return Snapshot{
		defaultCycleLength:      g.DefaultCycleLength,
		sessionTimeout:          g.SessionTimeout,
		maxCardioPct:            g.MaxCardioPct,
		maxMobilityPct:          g.MaxMobilityPct,
		enduranceHeavyThreshold: g.EnduranceHeavyThreshold,
		finisherThreshold:       g.FinisherThreshold,
		maxFinisherDays:         g.MaxFinisherDays,
		minutesPerCardioDay:     g.MinutesPerCardioDay,
	}
}

// DefaultSnapshot returns a snapshot of DefaultGeneration.
func DefaultSnapshot() Snapshot {
	return DefaultGeneration().Snapshot()
}

func (s Snapshot) DefaultCycleLength() int          { return s.defaultCycleLength }
func (s Snapshot) SessionTimeout() time.Duration    { return s.sessionTimeout }
func (s Snapshot) MaxCardioPct() float64            { return s.maxCardioPct }
func (s Snapshot) MaxMobilityPct() float64          { return s.maxMobilityPct }
func (s Snapshot) EnduranceHeavyThreshold() float64 { return s.enduranceHeavyThreshold }
func (s Snapshot) FinisherThreshold() float64       { return s.finisherThreshold }
func (s Snapshot) MaxFinisherDays() int             { return s.maxFinisherDays }
func (s Snapshot) MinutesPerCardioDay() int         { return s.minutesPerCardioDay }

// WithSessionTimeout returns a copy with a different per-session timeout.
func (s Snapshot) WithSessionTimeout(d time.Duration) Snapshot {
	s.sessionTimeout = d
	return s
}
