package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/uara-ai/healthscore/internal/domain/model"
	"github.com/uara-ai/healthscore/pkg/logger"
)

// dateLayout is the format of date query parameters.
const dateLayout = model.DateLayout

// calculateRequest is the body of POST /v1/health-score.
type calculateRequest struct {
	Markers          model.MarkerValues `json:"markers"`
	AlgorithmVersion string             `json:"algorithm_version"`
	Force            bool               `json:"force"`
}

// ScoresHandler serves calculation and snapshot reads.
type ScoresHandler struct {
	deps   Dependencies
	loc    *time.Location
	logger logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies, loc *time.Location, l logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, loc: loc, logger: l}
}

// HandleCalculate handles POST /v1/health-score requests.
func (h *ScoresHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	res, err := h.deps.CalculateHealthScore(r.Context(), userID(r), req.Markers, req.AlgorithmVersion, req.Force)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	status := http.StatusOK
	if res.Recalculated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// HandleLatest handles GET /v1/health-score/latest requests.
func (h *ScoresHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	snap, err := h.deps.GetLatestHealthScore(r.Context(), userID(r))
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleToday handles GET /v1/health-score/today requests.
func (h *ScoresHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	snap, err := h.deps.GetTodaysHealthScore(r.Context(), userID(r))
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleHistory handles GET /v1/health-score/history?since=YYYY-MM-DD requests.
func (h *ScoresHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: since must be YYYY-MM-DD", ErrBadRequest))
			return
		}
		since = t
	}
	history, err := h.deps.GetHealthScoreHistory(r.Context(), userID(r), since)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	if history == nil {
		history = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, history)
}
