package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shourjoguha/alloy/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite is a file-backed catalog for offline use. It also remembers which
// seed files were imported so unchanged files are not re-read.
type SQLite struct {
	db *sql.DB
}

var (
	_ Catalog = (*SQLite)(nil)
	_ Writer  = (*SQLite)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS movements (
		name               TEXT PRIMARY KEY,
		name_key           TEXT NOT NULL UNIQUE,
		pattern            TEXT NOT NULL,
		primary_muscle     TEXT NOT NULL DEFAULT '',
		secondary_muscles  TEXT NOT NULL DEFAULT '[]',
		equipment          TEXT NOT NULL DEFAULT '[]',
		region             TEXT NOT NULL,
		substitution_group TEXT NOT NULL DEFAULT '',
		compound           INTEGER NOT NULL DEFAULT 0,
		complex_lift       INTEGER NOT NULL DEFAULT 0,
		disciplines        TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS imported_files (
		path        TEXT PRIMARY KEY,
		hash        TEXT NOT NULL,
		imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// OpenSQLite opens (or creates) the catalog database at dir/catalog.db.
func OpenSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog db: %w", err)
	}

	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating catalog tables: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// UpsertMovements inserts or replaces movements by name.
func (s *SQLite) UpsertMovements(ctx context.Context, movements []models.Movement) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO movements
		(name, name_key, pattern, primary_muscle, secondary_muscles, equipment, region,
		 substitution_group, compound, complex_lift, disciplines)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for _, mv := range movements {
		res, err := stmt.ExecContext(ctx,
			mv.Name, Key(mv.Name), mv.Pattern, mv.PrimaryMuscle,
			jsonList(mv.SecondaryMuscles), jsonList(mv.Equipment), mv.Region,
			mv.SubstitutionGroup, mv.Compound, mv.ComplexLift, jsonList(mv.Disciplines),
		)
		if err != nil {
			return 0, fmt.Errorf("upserting %q: %w", mv.Name, err)
		}
		affected, _ := res.RowsAffected()
		n += min(affected, 1)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

const movementColumns = `name, pattern, primary_muscle, secondary_muscles, equipment, region,
	substitution_group, compound, complex_lift, disciplines`

// Movements returns catalog entries matching the filter, ordered by name.
func (s *SQLite) Movements(ctx context.Context, f Filter) ([]models.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE 1=1`
	var args []any
	if f.Region != "" && f.Region != models.RegionFull {
		query += ` AND region IN (?, ?)`
		args = append(args, f.Region, models.RegionFull)
	}
	if f.Pattern != "" {
		query += ` AND pattern = ?`
		args = append(args, f.Pattern)
	}
	query += ` ORDER BY name`

	all, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// Equipment and disciplines are JSON lists; filter them in memory.
	return Apply(all, Filter{Equipment: f.Equipment, Disciplines: f.Disciplines}), nil
}

// Lookup resolves names case-insensitively.
func (s *SQLite) Lookup(ctx context.Context, names []string) (map[string]models.Movement, error) {
	out := make(map[string]models.Movement, len(names))
	if len(names) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, n := range names {
		placeholders[i] = "?"
		args[i] = Key(n)
	}
	rows, err := s.query(ctx, `SELECT `+movementColumns+` FROM movements WHERE name_key IN (`+
		strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]models.Movement, len(rows))
	for _, mv := range rows {
		byKey[Key(mv.Name)] = mv
	}
	for _, n := range names {
		if mv, ok := byKey[Key(n)]; ok {
			out[n] = mv
		}
	}
	return out, nil
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) ([]models.Movement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying movements: %w", err)
	}
	defer rows.Close()

	var out []models.Movement
	for rows.Next() {
		var mv models.Movement
		var secondary, equipment, disciplines string
		if err := rows.Scan(&mv.Name, &mv.Pattern, &mv.PrimaryMuscle, &secondary, &equipment,
			&mv.Region, &mv.SubstitutionGroup, &mv.Compound, &mv.ComplexLift, &disciplines); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		mv.SecondaryMuscles = parseList(secondary)
		mv.Equipment = parseList(equipment)
		mv.Disciplines = parseList(disciplines)
		out = append(out, mv)
	}
	return out, rows.Err()
}

// IsImported checks if a seed file was already imported with the same hash.
func (s *SQLite) IsImported(path, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM imported_files WHERE path = ? AND hash = ?`,
		path, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkImported records that a seed file was imported.
func (s *SQLite) MarkImported(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO imported_files (path, hash) VALUES (?, ?)`,
		path, hash,
	)
	return err
}

// Close closes the catalog database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func jsonList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func parseList(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}
