// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/uara-ai/healthscore/internal/adapters/repository"
	service "github.com/uara-ai/healthscore/internal/app"
	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/internal/domain/scoring"
	"github.com/uara-ai/healthscore/internal/domain/types"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// UserHeader carries the caller identity set by the upstream auth layer.
const UserHeader = "X-User-ID"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CalculateHealthScore(ctx context.Context, userID string, values model.MarkerValues, algorithmVersion string, force bool) (types.Calculation, error)
	GetLatestHealthScore(ctx context.Context, userID string) (model.Snapshot, error)
	GetTodaysHealthScore(ctx context.Context, userID string) (model.Snapshot, error)
	GetHealthScoreHistory(ctx context.Context, userID string, since time.Time) ([]model.Snapshot, error)
	GetMarkerScoresByCategory(ctx context.Context, userID string, category *model.Category) ([]types.CategoryBreakdown, error)
	GetMarkerScoreTrends(ctx context.Context, userID string, markerIDs []model.MarkerID, windowDays int) ([]model.TrendResult, error)
	GetCategoryPerformanceSummary(ctx context.Context, userID string, windowDays int) ([]types.CategoryPerformance, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLocation sets the zone used to interpret date query parameters.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	scoresHandler   *ScoresHandler
	insightsHandler *InsightsHandler

	loc    *time.Location
	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{loc: time.UTC, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.scoresHandler = NewScoresHandler(deps, s.loc, s.logger)
	s.insightsHandler = NewInsightsHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)

	mux.HandleFunc("/v1/health-score", MetricsMiddleware(s.scoresHandler.HandleCalculate, "calculate"))
	mux.HandleFunc("/v1/health-score/latest", MetricsMiddleware(s.scoresHandler.HandleLatest, "latest"))
	mux.HandleFunc("/v1/health-score/today", MetricsMiddleware(s.scoresHandler.HandleToday, "today"))
	mux.HandleFunc("/v1/health-score/history", MetricsMiddleware(s.scoresHandler.HandleHistory, "history"))
	mux.HandleFunc("/v1/health-score/categories", MetricsMiddleware(s.insightsHandler.HandleCategories, "categories"))
	mux.HandleFunc("/v1/health-score/trends", MetricsMiddleware(s.insightsHandler.HandleTrends, "trends"))
	mux.HandleFunc("/v1/health-score/summary", MetricsMiddleware(s.insightsHandler.HandleSummary, "summary"))
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

// writeServiceError translates service errors to HTTP statuses.
func writeServiceError(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err)
	case errors.Is(err, scoring.ErrNoScorableData):
		writeError(w, http.StatusUnprocessableEntity, "no_scorable_data", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrStoreUnavailable):
		l.Error(ctx, "store unavailable", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", nil)
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		l.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// allow rejects requests whose method is not method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
	return false
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}
