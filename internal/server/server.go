package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shourjoguha/alloy/internal/jobs"
	"github.com/shourjoguha/alloy/internal/models"
	"github.com/shourjoguha/alloy/internal/planner"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/storage"
)

// Store is the read side of the status surface plus the job queue.
type Store interface {
	GetMicrocycle(ctx context.Context, id uuid.UUID) (*models.Microcycle, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	MicrocycleProgress(ctx context.Context, id uuid.UUID) (sequencer.Progress, error)
	ProgramStatus(ctx context.Context, programID uuid.UUID) (*storage.ProgramStatus, error)
	EnqueueJob(ctx context.Context, job *models.Job) error
}

var (
	_ Store = (*storage.DB)(nil)
	_ Store = (*storage.Memory)(nil)
)

// Server holds dependencies for HTTP handlers. Handlers never generate
// content themselves; they enqueue jobs and report status.
type Server struct {
	planner    *planner.Service
	store      Store
	remediator *jobs.Remediator
	log        *slog.Logger
	apiKey     string
	router     chi.Router
}

// New creates a new Server with all routes configured.
func New(svc *planner.Service, store Store, remediator *jobs.Remediator, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		planner:    svc,
		store:      store,
		remediator: remediator,
		log:        log,
		apiKey:     apiKey,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/programs", s.handleCreateProgram)
		r.Get("/programs/{id}", s.handleGetProgram)
		r.Get("/programs/{id}/status", s.handleProgramStatus)
		r.Post("/programs/{id}/advance", s.handleAdvance)

		r.Get("/microcycles/{id}", s.handleGetMicrocycle)
		r.Get("/microcycles/{id}/status", s.handleMicrocycleStatus)
		r.Post("/microcycles/{id}/generate", s.handleGenerate)

		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/jobs/{id}", s.handleGetJob)

		// Remediation (API key required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/sessions/requeue", s.handleRequeue)
			r.Post("/sessions/regenerate", s.handleRegenerate)
		})
	})
}
