package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shourjoguha/alloy/internal/models"
	"gopkg.in/yaml.v3"
)

// Result holds the outcome of a catalog import.
type Result struct {
	Received      int      `json:"received"`
	Inserted      int64    `json:"inserted"`
	Skipped       int64    `json:"skipped"`
	Rejected      int      `json:"rejected"`
	RejectedNames []string `json:"rejected_names,omitempty"`
}

// Writer persists normalized movements. Returns how many rows changed.
type Writer interface {
	UpsertMovements(ctx context.Context, movements []models.Movement) (int64, error)
}

type seedFile struct {
	Movements []models.Movement `yaml:"movements"`
}

// ParseYAML reads a seed file of the form `movements: [...]`.
func ParseYAML(r io.Reader) ([]models.Movement, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding catalog yaml: %w", err)
	}
	return f.Movements, nil
}

// Provider normalizes raw catalog entries and hands them to a Writer.
type Provider struct {
	w   Writer
	log *slog.Logger
}

// NewProvider creates a catalog ingest provider.
func NewProvider(w Writer, log *slog.Logger) *Provider {
	return &Provider{w: w, log: log}
}

// Ingest parses a YAML seed file and stores every valid movement.
func (p *Provider) Ingest(ctx context.Context, r io.Reader) (*Result, error) {
	raw, err := ParseYAML(r)
	if err != nil {
		return nil, err
	}
	valid, result := Normalize(raw)
	for _, name := range result.RejectedNames {
		p.log.Warn("catalog entry rejected", "name", name)
	}

	if len(valid) > 0 {
		inserted, err := p.w.UpsertMovements(ctx, valid)
		if err != nil {
			return nil, fmt.Errorf("storing movements: %w", err)
		}
		result.Inserted = inserted
		result.Skipped = int64(len(valid)) - inserted
	}
	return result, nil
}

// Normalize canonicalizes entries and drops the ones without a name or a
// known pattern. Duplicate names keep the last entry.
func Normalize(raw []models.Movement) ([]models.Movement, *Result) {
	result := &Result{Received: len(raw)}
	index := map[string]int{}
	var out []models.Movement
	for _, mv := range raw {
		pattern := mv.Pattern
		mv = models.NormalizeMovement(mv)
		if _, known := models.NormalizePattern(pattern); mv.Name == "" || !known {
			result.Rejected++
			label := mv.Name
			if label == "" {
				label = "(unnamed)"
			}
			result.RejectedNames = append(result.RejectedNames, label)
			continue
		}
		if i, dup := index[Key(mv.Name)]; dup {
			out[i] = mv
			continue
		}
		index[Key(mv.Name)] = len(out)
		out = append(out, mv)
	}
	return out, result
}
