package catalog

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/shourjoguha/alloy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
movements:
  - name: "  Back   Squat "
    pattern: "MovementPattern.SQUAT"
    primary_muscle: Quadriceps
    equipment: [Barbell, Rack]
    compound: true
    complex_lift: true
  - name: Face Pull
    pattern: Horizontal Pull
    primary_muscle: Rear Delts
    equipment: [Cable]
  - name: Jumping Jack
    pattern: plyometric
  - pattern: squat
  - name: back squat
    pattern: squat
    primary_muscle: quads
`

type fakeWriter struct {
	got []models.Movement
}

func (f *fakeWriter) UpsertMovements(_ context.Context, mv []models.Movement) (int64, error) {
	f.got = append(f.got, mv...)
	return int64(len(mv)), nil
}

// TestIngestNormalizesAndRejects verifies canonical values reach the writer and
// entries without a name or known pattern are rejected.
func TestIngestNormalizesAndRejects(t *testing.T) {
	w := &fakeWriter{}
	res, err := NewProvider(w, slog.Default()).Ingest(context.Background(), strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Received)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, []string{"Jumping Jack", "(unnamed)"}, res.RejectedNames)
	assert.Equal(t, int64(2), res.Inserted)

	require.Len(t, w.got, 2)
	// The later "back squat" entry replaces the first one in place.
	assert.Equal(t, "back squat", w.got[0].Name)
	assert.Equal(t, models.PatternSquat, w.got[0].Pattern)
	assert.Equal(t, "quads", w.got[0].PrimaryMuscle)
	assert.Equal(t, models.PatternHorizontalPull, w.got[1].Pattern)
	assert.Equal(t, "rear_delts", w.got[1].PrimaryMuscle)
	assert.Equal(t, []string{"cable"}, w.got[1].Equipment)
	assert.Equal(t, models.RegionUpper, w.got[1].Region)
}

// TestMemoryFilter verifies region, pattern, equipment and discipline filtering.
func TestMemoryFilter(t *testing.T) {
	m := NewMemory([]models.Movement{
		{Name: "Back Squat", Pattern: "squat", Equipment: []string{"barbell"}, Disciplines: []string{"powerlifting"}},
		{Name: "Goblet Squat", Pattern: "squat", Equipment: []string{"dumbbell"}},
		{Name: "Bench Press", Pattern: "horizontal_push", Equipment: []string{"barbell", "bench"}},
		{Name: "Burpee", Pattern: "conditioning"},
	})
	ctx := context.Background()

	lower, err := m.Movements(ctx, Filter{Region: models.RegionLower})
	require.NoError(t, err)
	assert.Equal(t, []string{"Back Squat", "Burpee", "Goblet Squat"}, Names(lower), "full-region movements match any region")

	squats, _ := m.Movements(ctx, Filter{Pattern: models.PatternSquat, Equipment: []string{"Dumbbell"}})
	assert.Equal(t, []string{"Goblet Squat"}, Names(squats))

	bodybuilding, _ := m.Movements(ctx, Filter{Pattern: models.PatternSquat, Disciplines: []string{"bodybuilding"}})
	assert.Equal(t, []string{"Goblet Squat"}, Names(bodybuilding))

	all, _ := m.Movements(ctx, Filter{Region: models.RegionFull})
	assert.Len(t, all, 4)
}

// TestMemoryLookup verifies lookups are case and whitespace insensitive and keyed by the requested name.
func TestMemoryLookup(t *testing.T) {
	m := NewMemory([]models.Movement{{Name: "Face Pull", Pattern: "horizontal_pull"}})
	got, err := m.Lookup(context.Background(), []string{"face  pull", "Unknown"})
	require.NoError(t, err)
	require.Contains(t, got, "face  pull")
	assert.Equal(t, "Face Pull", got["face  pull"].Name)
	assert.NotContains(t, got, "Unknown")
}

// TestSQLiteRoundTrip verifies movements survive storage and filters apply.
func TestSQLiteRoundTrip(t *testing.T) {
	db, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	valid, _ := Normalize([]models.Movement{
		{Name: "Back Squat", Pattern: "squat", PrimaryMuscle: "Quadriceps", SecondaryMuscles: []string{"glutes"}, Equipment: []string{"barbell"}, Compound: true, ComplexLift: true},
		{Name: "Face Pull", Pattern: "horizontal_pull", Equipment: []string{"cable"}},
		{Name: "Burpee", Pattern: "metcon"},
	})
	n, err := db.UpsertMovements(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	lower, err := db.Movements(ctx, Filter{Region: models.RegionLower})
	require.NoError(t, err)
	assert.Equal(t, []string{"Back Squat", "Burpee"}, Names(lower))

	got, err := db.Lookup(ctx, []string{"BACK SQUAT"})
	require.NoError(t, err)
	sq := got["BACK SQUAT"]
	assert.True(t, sq.Compound)
	assert.True(t, sq.ComplexLift)
	assert.Equal(t, []string{"glutes"}, sq.SecondaryMuscles)
	assert.Equal(t, "quadriceps", sq.PrimaryMuscle)

	cable, _ := db.Movements(ctx, Filter{Equipment: []string{"barbell"}})
	assert.Equal(t, []string{"Back Squat", "Burpee"}, Names(cable))
}

// TestSQLiteImportedFiles verifies seed file tracking by path and hash.
func TestSQLiteImportedFiles(t *testing.T) {
	db, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ok, err := db.IsImported("seed.yaml", "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.MarkImported("seed.yaml", "abc"))
	ok, _ = db.IsImported("seed.yaml", "abc")
	assert.True(t, ok)
	ok, _ = db.IsImported("seed.yaml", "def")
	assert.False(t, ok, "changed hash means the file must be imported again")
}

// TestDefaultCatalog verifies the built-in seed loads without rejections.
func TestDefaultCatalog(t *testing.T) {
	raw, err := ParseYAML(strings.NewReader(string(SeedYAML())))
	require.NoError(t, err)
	_, res := Normalize(raw)
	assert.Zero(t, res.Rejected, "rejected: %v", res.RejectedNames)

	m, err := Default()
	require.NoError(t, err)
	assert.Greater(t, m.Len(), 60)

	got, _ := m.Lookup(context.Background(), []string{"Leg Curl", "Split Squat", "Farmer Carry"})
	assert.Equal(t, models.RegionLower, got["Leg Curl"].Region)
	assert.Equal(t, models.PatternLunge, got["Split Squat"].Pattern)
	assert.Equal(t, models.PatternCarry, got["Farmer Carry"].Pattern)
}
