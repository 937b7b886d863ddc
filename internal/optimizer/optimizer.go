// Package optimizer is the client side of the movement-selection service that
// drafts a session's movements. Its internal algorithm is not part of Alloy.
package optimizer

import (
	"context"
	"errors"

	"github.com/shourjoguha/alloy/internal/models"
)

// Status is the solver outcome.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusTimeout    Status = "TIMEOUT"
	StatusError      Status = "ERROR"
)

// Usable reports whether the selection can be used as a draft.
func (s Status) Usable() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Request is one draft-generation call.
type Request struct {
	Movements       []models.Movement  `json:"movements"`
	TargetVolume    map[string]float64 `json:"target_volume"`
	Excluded        []string           `json:"excluded,omitempty"`
	Required        []string           `json:"required,omitempty"`
	Preferred       []string           `json:"preferred,omitempty"`
	Goals           models.GoalWeights `json:"goals"`
	DurationMinutes int                `json:"duration_minutes"`
	Disciplines     []string           `json:"disciplines,omitempty"`
}

// Result is the optimizer's answer.
type Result struct {
	Status           Status   `json:"status"`
	Selected         []string `json:"selected"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// Optimizer drafts a movement selection.
type Optimizer interface {
	Select(ctx context.Context, req Request) (Result, error)
}

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("optimizer disabled")

// Disabled is used when no optimizer is configured. Every session goes
// through the heuristic selector.
type Disabled struct{}

var _ Optimizer = Disabled{}

func (Disabled) Select(context.Context, Request) (Result, error) {
	return Result{Status: StatusError}, ErrDisabled
}

// Func adapts a function to Optimizer.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Select(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
