package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPClient calls a remote optimizer over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	log        *slog.Logger
}

var _ Optimizer = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. The
// per-call deadline comes from the caller's context; timeout only guards
// against a caller that sets none.
func NewHTTPClient(baseURL string, timeout time.Duration, maxRetries int, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      RetryConfig{MaxRetries: maxRetries, BaseDelay: 200 * time.Millisecond},
		log:        log,
	}
}

// Select posts the request to /v1/select, retrying transient failures.
func (c *HTTPClient) Select(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("optimizer: encode request: %w", err)
	}

	var res Result
	retry := c.retry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.Warn("optimizer call failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
	}
	err = RetryWithBackoff(ctx, retry, func() error {
		var callErr error
		res, callErr = c.post(ctx, "/v1/select", payload)
		return callErr
	})
	if err != nil {
		status := StatusError
		if errors.Is(err, context.DeadlineExceeded) {
			status = StatusTimeout
		}
		return Result{Status: status}, err
	}
	return res, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Result{}, Permanent(fmt.Errorf("optimizer: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("optimizer: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("optimizer: read body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return Result{}, fmt.Errorf("optimizer: %s returned %d: %s", path, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return Result{}, Permanent(fmt.Errorf("optimizer: %s returned %d: %s", path, resp.StatusCode, body))
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return Result{}, Permanent(fmt.Errorf("optimizer: decode result: %w", err))
	}
	return res, nil
}
