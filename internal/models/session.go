package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionType is the archetype of a training day.
type SessionType string

const (
	SessionUpper    SessionType = "UPPER"
	SessionLower    SessionType = "LOWER"
	SessionPush     SessionType = "PUSH"
	SessionPull     SessionType = "PULL"
	SessionLegs     SessionType = "LEGS"
	SessionFullBody SessionType = "FULL_BODY"
	SessionCardio   SessionType = "CARDIO"
	SessionMobility SessionType = "MOBILITY"
	SessionCustom   SessionType = "CUSTOM"
	SessionRecovery SessionType = "RECOVERY"
)

// Session tags set by the time bucket allocator.
const (
	TagPreferAccessory = "prefer_accessory"
	TagPreferFinisher  = "prefer_finisher"
	TagConditioning    = "conditioning"
)

// Role is the section of a session an exercise belongs to.
type Role string

const (
	RoleWarmup    Role = "WARMUP"
	RoleMain      Role = "MAIN"
	RoleAccessory Role = "ACCESSORY"
	RoleFinisher  Role = "FINISHER"
	RoleCooldown  Role = "COOLDOWN"
)

// RolePriority orders roles for intra-session dedup; lower wins.
var RolePriority = map[Role]int{
	RoleMain:      0,
	RoleAccessory: 1,
	RoleFinisher:  2,
	RoleWarmup:    3,
	RoleCooldown:  4,
}

// ExerciseAssignment is one movement prescribed in a session.
type ExerciseAssignment struct {
	Role            Role    `json:"role"`
	Movement        string  `json:"movement"`
	Sets            int     `json:"sets,omitempty"`
	RepMin          int     `json:"rep_min,omitempty"`
	RepMax          int     `json:"rep_max,omitempty"`
	TargetRPE       float64 `json:"target_rpe,omitempty"`
	RestSeconds     int     `json:"rest_seconds,omitempty"`
	DurationSeconds int     `json:"duration_seconds,omitempty"`
	Order           int     `json:"order"`
	Placeholder     bool    `json:"placeholder,omitempty"`
}

// Finisher is a short conditioning block closing a session.
type Finisher struct {
	Kind      string               `json:"kind"`
	Rounds    int                  `json:"rounds"`
	Minutes   int                  `json:"minutes"`
	Exercises []ExerciseAssignment `json:"exercises"`
}

// Session is one calendar day of a microcycle.
type Session struct {
	ID               uuid.UUID            `json:"id"`
	MicrocycleID     uuid.UUID            `json:"microcycle_id"`
	DayNumber        int                  `json:"day_number"`
	Date             time.Time            `json:"date"`
	Type             SessionType          `json:"type"`
	Patterns         []string             `json:"patterns"`
	Tags             []string             `json:"tags,omitempty"`
	GenerationStatus GenerationStatus     `json:"generation_status"`
	EstimatedMinutes int                  `json:"estimated_minutes"`
	CoachNotes       string               `json:"coach_notes,omitempty"`
	Warmup           []ExerciseAssignment `json:"warmup,omitempty"`
	Main             []ExerciseAssignment `json:"main,omitempty"`
	Accessory        []ExerciseAssignment `json:"accessory,omitempty"`
	Finisher         *Finisher            `json:"finisher,omitempty"`
	Cooldown         []ExerciseAssignment `json:"cooldown,omitempty"`
}

// HasTag reports whether the session carries the tag.
func (s *Session) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag once.
func (s *Session) AddTag(tag string) {
	if !s.HasTag(tag) {
		s.Tags = append(s.Tags, tag)
	}
}

// IsRecovery reports whether the session is a rest day.
func (s *Session) IsRecovery() bool {
	return s.Type == SessionRecovery
}

// IsConditioning reports whether the session is a dedicated cardio, mobility or conditioning day.
func (s *Session) IsConditioning() bool {
	switch s.Type {
	case SessionCardio, SessionMobility:
		return true
	case SessionCustom:
		return s.HasTag(TagConditioning)
	}
	return false
}

// IsLifting reports whether the session follows the full assembly pipeline.
func (s *Session) IsLifting() bool {
	return !s.IsRecovery() && !s.IsConditioning()
}

// MainPatterns returns the first two pattern tags.
func (s *Session) MainPatterns() []string {
	if len(s.Patterns) > 2 {
		return s.Patterns[:2]
	}
	return s.Patterns
}

// AppendNote adds a line to the coach notes.
func (s *Session) AppendNote(note string) {
	if s.CoachNotes == "" {
		s.CoachNotes = note
		return
	}
	s.CoachNotes += "\n" + note
}

// Assignments returns every exercise in the session, finisher included.
func (s *Session) Assignments() []ExerciseAssignment {
	out := make([]ExerciseAssignment, 0, len(s.Warmup)+len(s.Main)+len(s.Accessory)+len(s.Cooldown)+4)
	out = append(out, s.Warmup...)
	out = append(out, s.Main...)
	out = append(out, s.Accessory...)
	if s.Finisher != nil {
		out = append(out, s.Finisher.Exercises...)
	}
	out = append(out, s.Cooldown...)
	return out
}

// MovementNames returns the distinct real movement names used by the session.
func (s *Session) MovementNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range s.Assignments() {
		if a.Placeholder || a.Movement == "" || seen[a.Movement] {
			continue
		}
		seen[a.Movement] = true
		out = append(out, a.Movement)
	}
	return out
}

// AccessoryNames returns the movement names of the accessory block.
func (s *Session) AccessoryNames() []string {
	out := make([]string, 0, len(s.Accessory))
	for _, a := range s.Accessory {
		out = append(out, a.Movement)
	}
	return out
}

// ClearContent drops every generated section.
func (s *Session) ClearContent() {
	s.Warmup = nil
	s.Main = nil
	s.Accessory = nil
	s.Finisher = nil
	s.Cooldown = nil
	s.EstimatedMinutes = 0
}
