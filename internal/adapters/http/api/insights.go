package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// InsightsHandler serves category breakdowns and trends.
type InsightsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(deps Dependencies, l logger.Logger) *InsightsHandler {
	return &InsightsHandler{deps: deps, logger: l}
}

// HandleCategories handles GET /v1/health-score/categories?category= requests.
func (h *InsightsHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	var category *model.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		c := model.Category(raw)
		category = &c
	}
	out, err := h.deps.GetMarkerScoresByCategory(r.Context(), userID(r), category)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleTrends handles GET /v1/health-score/trends?markers=a,b&window=N requests.
func (h *InsightsHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	window, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var ids []model.MarkerID
	for _, part := range strings.Split(r.URL.Query().Get("markers"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, model.MarkerID(part))
		}
	}
	out, err := h.deps.GetMarkerScoreTrends(r.Context(), userID(r), ids, window)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSummary handles GET /v1/health-score/summary?window=N requests.
func (h *InsightsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	window, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	out, err := h.deps.GetCategoryPerformanceSummary(r.Context(), userID(r), window)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// windowParam reads the window query parameter. Absent means the service default.
func windowParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: window must be a positive integer", ErrBadRequest)
	}
	return n, nil
}
