package main

import (
	"testing"
	"time"

	"github.com/shourjoguha/alloy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseGoals verifies goal=weight pairs and bare goals.
func TestParseGoals(t *testing.T) {
	goals, err := parseGoals([]string{"strength=2", " fat_loss "})
	require.NoError(t, err)
	assert.Equal(t, models.GoalWeights{
		{Goal: models.GoalStrength, Weight: 2},
		{Goal: models.GoalFatLoss, Weight: 1},
	}, goals)

	_, err = parseGoals([]string{"strength=lots"})
	assert.Error(t, err)
}

// TestNextMonday verifies the default start date is always a later Monday.
func TestNextMonday(t *testing.T) {
	for day := 0; day < 7; day++ {
		now := time.Date(2026, 10, 18+day, 15, 4, 0, 0, time.UTC)
		got := nextMonday(now)
		assert.Equal(t, time.Monday, got.Weekday(), "from %s", now.Weekday())
		assert.True(t, got.After(now))
		assert.LessOrEqual(t, got.Sub(now), 7*24*time.Hour)
	}
}

// TestProgramFlags verifies flags produce a valid program and invalid ones are rejected.
func TestProgramFlags(t *testing.T) {
	f := programFlags{
		name:    "Block",
		weeks:   10,
		days:    4,
		minutes: 50,
		start:   "2026-11-02",
		goals:   []string{"hypertrophy=3", "mobility=1"},
	}
	p, err := f.program(time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.CardioAuto, p.Preferences.CardioDedication)
	assert.Equal(t, 70, p.TotalDays())

	f.weeks = 9
	_, err = f.program(time.Now())
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration_weeks", verr.Field)
}
