// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/matchflow/internal/app"
	"github.com/okian/matchflow/internal/domain/types"
)

const defaultMaxRequestBytes = 32 << 20

// RunService is what the handlers need from the application layer.
type RunService interface {
	SubmitMatching(ctx context.Context, req *service.MatchingRequest) (types.Run, bool, error)
	SubmitCourses(ctx context.Context, req *service.CourseRequest) (types.Run, bool, error)
	GetRun(ctx context.Context, id string) (types.Run, error)
	ListRuns(ctx context.Context, limit int) ([]types.Run, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	runsHandler   *RunsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxRequestBytes caps accepted request bodies. Larger bodies get 413.
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.runsHandler.maxBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(svc RunService, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		runsHandler:   NewRunsHandler(svc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /matchings", MetricsMiddleware(s.runsHandler.HandleSubmitMatching, "matchings"))
	mux.HandleFunc("POST /course-assignments", MetricsMiddleware(s.runsHandler.HandleSubmitCourses, "course_assignments"))
	mux.HandleFunc("GET /runs", MetricsMiddleware(s.runsHandler.HandleListRuns, "runs"))
	mux.HandleFunc("GET /runs/{id}", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))
}

type ackResponse struct {
	RunID     string          `json:"run_id"`
	Status    types.RunStatus `json:"status"`
	Duplicate bool            `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeBody reads one JSON document of at most limit bytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON body", ErrBadRequest)
	}
	return nil
}
