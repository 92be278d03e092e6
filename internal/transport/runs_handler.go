// Package transport exposes the read-only operations HTTP API: ingestion-run
// history, store statistics and health.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/coinforge/cryptoetl-backend/internal/model"
	"github.com/coinforge/cryptoetl-backend/internal/repository/postgres"
)

type (
	RunStore interface {
		Runs(ctx context.Context, filter postgres.RunFilter) ([]model.IngestionRun, error)
		Stats(ctx context.Context) (postgres.Stats, error)
		Ping(ctx context.Context) error
	}
)

// RunsHandler serves the operations endpoints.
type RunsHandler struct {
	store  RunStore
	logger *zap.Logger
}

// NewRunsHandler builds a RunsHandler.
func NewRunsHandler(store RunStore, logger *zap.Logger) (*RunsHandler, error) {
	if store == nil {
		return nil, errors.New("runs handler store is required")
	}
	if logger == nil {
		return nil, errors.New("runs handler logger is required")
	}
	return &RunsHandler{store: store, logger: logger.Named("runsHandler")}, nil
}

// Register attaches the endpoints to mux.
func (h *RunsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/runs", h.listRuns)
	mux.HandleFunc("GET /v1/stats", h.stats)
	mux.HandleFunc("GET /v1/health", h.health)
}

type runResponse struct {
	ID          int64           `json:"id"`
	Source      model.Source    `json:"source"`
	Family      model.Family    `json:"record_family"`
	Coin        model.Coin      `json:"coin_symbol,omitempty"`
	TargetDate  string          `json:"target_date,omitempty"`
	Status      model.RunStatus `json:"status"`
	Processed   int             `json:"records_processed"`
	Inserted    int             `json:"records_inserted"`
	Updated     int             `json:"records_updated"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error_message,omitempty"`
}

func (h *RunsHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := postgres.RunFilter{
		Source: model.Source(query.Get("source")),
		Family: model.Family(query.Get("family")),
		Status: model.RunStatus(query.Get("status")),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	runs, err := h.store.Runs(r.Context(), filter)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp := runResponse{
			ID:          run.ID,
			Source:      run.Source,
			Family:      run.Family,
			Coin:        run.Coin,
			Status:      run.Status,
			Processed:   run.RecordsProcessed,
			Inserted:    run.RecordsInserted,
			Updated:     run.RecordsUpdated,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
			Error:       run.ErrorMessage,
		}
		if run.TargetDate != nil {
			resp.TargetDate = run.TargetDate.Format("2006-01-02")
		}
		out = append(out, resp)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (h *RunsHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *RunsHandler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *RunsHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("write response failed", zap.Error(err))
	}
}

func (h *RunsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
