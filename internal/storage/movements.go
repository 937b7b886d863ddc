package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/models"
)

var (
	_ catalog.Catalog = (*DB)(nil)
	_ catalog.Writer  = (*DB)(nil)
)

// UpsertMovements replaces catalog rows by name. Movements must already be normalized.
func (db *DB) UpsertMovements(ctx context.Context, movements []models.Movement) (int64, error) {
	if len(movements) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, mv := range movements {
		batch.Queue(
			`INSERT INTO movements (name, name_key, pattern, primary_muscle, secondary_muscles, equipment,
			 region, substitution_group, compound, complex_lift, disciplines)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			 ON CONFLICT (name_key) DO UPDATE SET
			   name = EXCLUDED.name, pattern = EXCLUDED.pattern, primary_muscle = EXCLUDED.primary_muscle,
			   secondary_muscles = EXCLUDED.secondary_muscles, equipment = EXCLUDED.equipment,
			   region = EXCLUDED.region, substitution_group = EXCLUDED.substitution_group,
			   compound = EXCLUDED.compound, complex_lift = EXCLUDED.complex_lift,
			   disciplines = EXCLUDED.disciplines`,
			mv.Name, catalog.Key(mv.Name), mv.Pattern, mv.PrimaryMuscle, nonNil(mv.SecondaryMuscles),
			nonNil(mv.Equipment), mv.Region, mv.SubstitutionGroup, mv.Compound, mv.ComplexLift,
			nonNil(mv.Disciplines))
	}

	br := db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	var n int64
	for range movements {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("upserting movement: %w", err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

const movementColumns = `name, pattern, primary_muscle, secondary_muscles, equipment, region,
	substitution_group, compound, complex_lift, disciplines`

// Movements filters region and pattern in SQL and the list attributes in memory.
func (db *DB) Movements(ctx context.Context, f catalog.Filter) ([]models.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE TRUE`
	var args []any
	if f.Region != "" && f.Region != models.RegionFull {
		args = append(args, f.Region)
		query += fmt.Sprintf(" AND region IN ($%d, 'full')", len(args))
	}
	if f.Pattern != "" {
		args = append(args, f.Pattern)
		query += fmt.Sprintf(" AND pattern = $%d", len(args))
	}
	query += " ORDER BY name"

	movements, err := db.queryMovements(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return catalog.Apply(movements, catalog.Filter{Equipment: f.Equipment, Disciplines: f.Disciplines}), nil
}

// Lookup resolves names case-insensitively. The result is keyed by the requested names.
func (db *DB) Lookup(ctx context.Context, names []string) (map[string]models.Movement, error) {
	out := make(map[string]models.Movement, len(names))
	if len(names) == 0 {
		return out, nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = catalog.Key(n)
	}
	movements, err := db.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE name_key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]models.Movement, len(movements))
	for _, mv := range movements {
		byKey[catalog.Key(mv.Name)] = mv
	}
	for i, n := range names {
		if mv, ok := byKey[keys[i]]; ok {
			out[n] = mv
		}
	}
	return out, nil
}

func (db *DB) queryMovements(ctx context.Context, query string, args ...any) ([]models.Movement, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying movements: %w", err)
	}
	defer rows.Close()

	var out []models.Movement
	for rows.Next() {
		var mv models.Movement
		if err := rows.Scan(&mv.Name, &mv.Pattern, &mv.PrimaryMuscle, &mv.SecondaryMuscles, &mv.Equipment,
			&mv.Region, &mv.SubstitutionGroup, &mv.Compound, &mv.ComplexLift, &mv.Disciplines); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

// MovementCount returns the number of catalog rows.
func (db *DB) MovementCount(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM movements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting movements: %w", err)
	}
	return n, nil
}
