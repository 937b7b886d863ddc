package models

import (
	"time"

	"github.com/google/uuid"
)

// Microcycle length bounds in days.
const (
	MinCycleLength = 7
	MaxCycleLength = 14
)

// CycleStatus is the lifecycle state of a microcycle within its program.
type CycleStatus string

const (
	CyclePlanned  CycleStatus = "PLANNED"
	CycleActive   CycleStatus = "ACTIVE"
	CycleComplete CycleStatus = "COMPLETE"
)

// GenerationStatus tracks content generation for microcycles and sessions.
type GenerationStatus string

const (
	GenPending    GenerationStatus = "PENDING"
	GenInProgress GenerationStatus = "IN_PROGRESS"
	GenCompleted  GenerationStatus = "COMPLETED"
	GenFailed     GenerationStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s GenerationStatus) Terminal() bool {
	return s == GenCompleted || s == GenFailed
}

// Microcycle is a 7–14 day block of a program.
type Microcycle struct {
	ID               uuid.UUID        `json:"id"`
	ProgramID        uuid.UUID        `json:"program_id"`
	Sequence         int              `json:"sequence"`
	StartDate        time.Time        `json:"start_date"`
	LengthDays       int              `json:"length_days"`
	Status           CycleStatus      `json:"status"`
	IsDeload         bool             `json:"is_deload"`
	GenerationStatus GenerationStatus `json:"generation_status"`
	BiasNotes        string           `json:"bias_notes,omitempty"`
	Sessions         []Session        `json:"sessions,omitempty"`
}

// EndDate is the last calendar day of the microcycle.
func (m *Microcycle) EndDate() time.Time {
	return m.StartDate.AddDate(0, 0, m.LengthDays-1)
}
