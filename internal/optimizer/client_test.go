package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shourjoguha/alloy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestSelectSendsRequest verifies the client posts the request body and parses the result.
func TestSelectSendsRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/select", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"Back Squat"}, req.Excluded)
		assert.Equal(t, 60, req.DurationMinutes)
		writeTestJSON(t, w, Result{Status: StatusOptimal, Selected: []string{"Deadlift", "Leg Curl"}, EstimatedMinutes: 55})
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL+"/", time.Second, 0, slog.Default())
	res, err := c.Select(context.Background(), Request{
		Movements:       []models.Movement{{Name: "Deadlift"}},
		Excluded:        []string{"Back Squat"},
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.True(t, res.Status.Usable())
	assert.Equal(t, []string{"Deadlift", "Leg Curl"}, res.Selected)
}

// TestSelectRetriesServerErrors verifies 5xx responses are retried with backoff.
func TestSelectRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		writeTestJSON(t, w, Result{Status: StatusFeasible, Selected: []string{"Row"}})
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second, 3, slog.Default())
	c.retry.BaseDelay = time.Millisecond
	res, err := c.Select(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusFeasible, res.Status)
	assert.Equal(t, int32(3), calls.Load())
}

// TestSelectDoesNotRetryClientErrors verifies 4xx responses fail immediately.
func TestSelectDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad catalog", http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second, 3, slog.Default())
	res, err := c.Select(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, int32(1), calls.Load())
}

// TestSelectTimeout verifies an expired context is reported as TIMEOUT.
func TestSelectTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second, 2, slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := c.Select(ctx, Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StatusTimeout, res.Status)
}

// TestDisabled verifies the disabled optimizer always reports an error.
func TestDisabled(t *testing.T) {
	res, err := Disabled{}.Select(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, res.Status.Usable())
}

// TestRetryWithBackoffExhausts verifies the retry budget is honored.
func TestRetryWithBackoffExhausts(t *testing.T) {
	calls := 0
	var delays []time.Duration
	err := RetryWithBackoff(context.Background(), RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}, func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}
