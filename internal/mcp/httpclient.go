package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/storage"
)

// HTTPClient implements DataSource by calling the Alloy REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// programs live on the remote server.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, want int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == want:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	default:
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, http.StatusOK)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

type programEnvelope struct {
	Program     *models.Program     `json:"program"`
	Microcycles []models.Microcycle `json:"microcycles"`
}

// GetProgram calls GET /api/v1/programs/{id}.
func (c *HTTPClient) GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var resp programEnvelope
	if err := c.get(ctx, "/api/v1/programs/"+id.String(), &resp); err != nil {
		return nil, err
	}
	return resp.Program, nil
}

// ListMicrocycles calls GET /api/v1/programs/{id} and returns its microcycles.
func (c *HTTPClient) ListMicrocycles(ctx context.Context, programID uuid.UUID) ([]models.Microcycle, error) {
	var resp programEnvelope
	if err := c.get(ctx, "/api/v1/programs/"+programID.String(), &resp); err != nil {
		return nil, err
	}
	return resp.Microcycles, nil
}

// ProgramStatus calls GET /api/v1/programs/{id}/status.
func (c *HTTPClient) ProgramStatus(ctx context.Context, programID uuid.UUID) (*storage.ProgramStatus, error) {
	var st storage.ProgramStatus
	if err := c.get(ctx, "/api/v1/programs/"+programID.String()+"/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetMicrocycle calls GET /api/v1/microcycles/{id}.
func (c *HTTPClient) GetMicrocycle(ctx context.Context, id uuid.UUID) (*models.Microcycle, error) {
	var mc models.Microcycle
	if err := c.get(ctx, "/api/v1/microcycles/"+id.String(), &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

// MicrocycleProgress calls GET /api/v1/microcycles/{id}/status.
func (c *HTTPClient) MicrocycleProgress(ctx context.Context, id uuid.UUID) (sequencer.Progress, error) {
	var prog sequencer.Progress
	err := c.get(ctx, "/api/v1/microcycles/"+id.String()+"/status", &prog)
	return prog, err
}

// GetSession calls GET /api/v1/sessions/{id}.
func (c *HTTPClient) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var sess models.Session
	if err := c.get(ctx, "/api/v1/sessions/"+id.String(), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetJob calls GET /api/v1/jobs/{id}.
func (c *HTTPClient) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := c.get(ctx, "/api/v1/jobs/"+id.String(), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// EnqueueJob calls POST /api/v1/microcycles/{id}/generate. Only full
// microcycle generation is exposed over the public API; session
// regeneration goes through the admin endpoints.
func (c *HTTPClient) EnqueueJob(ctx context.Context, job *models.Job) error {
	if job.Kind != models.JobGenerateMicrocycle {
		return fmt.Errorf("httpclient: job kind %q not supported remotely", job.Kind)
	}
	path := "/api/v1/microcycles/" + job.MicrocycleID.String() + "/generate"
	body, err := c.do(ctx, http.MethodPost, path, http.StatusAccepted)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, job); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}
