// Package server exposes the upload and session API over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/export"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ingest"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/pipeline"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/repository"
)

// ReportProcessor is satisfied by *pipeline.Processor.
type ReportProcessor interface {
	ProcessFile(ctx context.Context, path, filename string) (*pipeline.Outcome, error)
}

// Pinger is satisfied by *repository.DB.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error
}

type Deps struct {
	Processor      ReportProcessor
	Stager         *ingest.Stager
	Users          repository.UserRepository
	Sessions       repository.SessionRepository
	Tests          repository.BloodTestRepository
	Export         *export.Service
	DB             Pinger
	MaxUploadBytes int64
	CORSOrigins    []string
	Logger         *slog.Logger
}

type Server struct {
	processor ReportProcessor
	stager    *ingest.Stager
	users     repository.UserRepository
	sessions  repository.SessionRepository
	tests     repository.BloodTestRepository
	export    *export.Service
	db        Pinger
	maxUpload int64
	origins   []string
	logger    *slog.Logger
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 20 << 20
	}
	return &Server{
		processor: d.Processor,
		stager:    d.Stager,
		users:     d.Users,
		sessions:  d.Sessions,
		tests:     d.Tests,
		export:    d.Export,
		db:        d.DB,
		maxUpload: d.MaxUploadBytes,
		origins:   d.CORSOrigins,
		logger:    d.Logger,
	}
}

// Handler returns the routed API with request ids, access logs and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /upload/{$}", s.handleUpload)

	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{$}", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/tests/{testID}", s.handleGetTest)
	mux.HandleFunc("PUT /sessions/{id}/tests/{testID}", s.handleUpdateTest)

	mux.HandleFunc("GET /users/{id}/trend", s.handleTrend)
	mux.HandleFunc("GET /export.xlsx", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return withCORS(s.origins, withRequestContext(s.logger, mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context(), 2*time.Second, s.logger); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
