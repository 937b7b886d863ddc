// Package catalog is the read-only movement catalog and its ingestion
// boundary. Every movement entering the system passes through
// models.NormalizeMovement here, so downstream code only sees canonical values.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/shourjoguha/alloy/internal/models"
)

// Filter narrows a catalog query. Zero fields match everything.
type Filter struct {
	Region      string   // upper, lower, core; "" or "full" for all
	Pattern     string   // canonical pattern
	Equipment   []string // available equipment; movements needing anything else are dropped
	Disciplines []string // any overlap matches; movements without disciplines always match
}

// Catalog is the movement lookup used by session assembly.
type Catalog interface {
	Movements(ctx context.Context, f Filter) ([]models.Movement, error)
	Lookup(ctx context.Context, names []string) (map[string]models.Movement, error)
}

// Key is the lookup key for a movement name.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Memory is an in-process catalog. It is safe for concurrent reads.
type Memory struct {
	byKey map[string]models.Movement
	order []string
}

var _ Catalog = (*Memory)(nil)

// NewMemory normalizes and indexes the movements. Later duplicates win.
func NewMemory(movements []models.Movement) *Memory {
	m := &Memory{byKey: make(map[string]models.Movement, len(movements))}
	for _, mv := range movements {
		mv = models.NormalizeMovement(mv)
		k := Key(mv.Name)
		if k == "" {
			continue
		}
		if _, ok := m.byKey[k]; !ok {
			m.order = append(m.order, k)
		}
		m.byKey[k] = mv
	}
	return m
}

// Len returns the number of movements.
func (m *Memory) Len() int { return len(m.order) }

// All returns every movement in insertion order.
func (m *Memory) All() []models.Movement {
	out := make([]models.Movement, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.byKey[k])
	}
	return out
}

func (m *Memory) Movements(_ context.Context, f Filter) ([]models.Movement, error) {
	return Apply(m.All(), f), nil
}

func (m *Memory) Lookup(_ context.Context, names []string) (map[string]models.Movement, error) {
	out := make(map[string]models.Movement, len(names))
	for _, n := range names {
		if mv, ok := m.byKey[Key(n)]; ok {
			out[n] = mv
		}
	}
	return out, nil
}

// Apply filters movements in memory.
func Apply(movements []models.Movement, f Filter) []models.Movement {
	var out []models.Movement
	for _, mv := range movements {
		if Matches(mv, f) {
			out = append(out, mv)
		}
	}
	return out
}

// Matches reports whether a movement passes the filter.
func Matches(mv models.Movement, f Filter) bool {
	if f.Region != "" && f.Region != models.RegionFull && mv.Region != f.Region && mv.Region != models.RegionFull {
		return false
	}
	if f.Pattern != "" && mv.Pattern != f.Pattern {
		return false
	}
	if len(f.Equipment) > 0 {
		have := toSet(f.Equipment)
		for _, e := range mv.Equipment {
			if !have[e] {
				return false
			}
		}
	}
	if len(f.Disciplines) > 0 && len(mv.Disciplines) > 0 {
		want := toSet(f.Disciplines)
		found := false
		for _, d := range mv.Disciplines {
			if want[d] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Names returns the sorted movement names.
func Names(movements []models.Movement) []string {
	out := make([]string, 0, len(movements))
	for _, mv := range movements {
		out = append(out, mv.Name)
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[models.Canonical(v)] = true
	}
	return set
}
