package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lavanet/lava-indexer/internal/aggregator"
	"github.com/lavanet/lava-indexer/internal/backfill"
	"github.com/lavanet/lava-indexer/internal/indexer"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

// Handler holds the dependencies for API handlers.
type Handler struct {
	DB         *pgxpool.Pool
	RPC        *rpc.Client
	Indexer    *indexer.Indexer
	Aggregator *aggregator.Engine
	AdminToken string
}

// NewRouter creates and configures the HTTP router with all API routes
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Public health check endpoint
	r.HandleFunc("/api/health", h.HandleHealth).Methods(http.MethodGet)

	// Protected admin endpoints
	r.HandleFunc("/api/progress", h.RequireAuth(h.HandleProgress)).Methods(http.MethodGet)
	r.HandleFunc("/api/aggregate", h.RequireAuth(h.HandleAggregate)).Methods(http.MethodPost)
	r.HandleFunc("/api/index/{height}", h.RequireAuth(h.HandleIndexHeight)).Methods(http.MethodPost)

	return r
}

// RequireAuth is a middleware that validates the bearer token
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		expected := "Bearer " + h.AdminToken

		if h.AdminToken == "" || auth != expected {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		next(w, r)
	}
}

// HandleHealth returns a simple health check response
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleProgress reports how far indexing is behind the chain tip,
// including any interior gaps.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	head, err := h.RPC.ChainHead(ctx)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	maxIndexed, err := h.Indexer.MaxIndexedHeight(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var missing int64
	if maxIndexed > 0 {
		missing, err = backfill.CountMissingBlocks(ctx, h.DB, 1, maxIndexed)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"chain_head":      head,
		"indexed_height":  maxIndexed,
		"blocks_behind":   head - maxIndexed,
		"missing_in_gaps": missing,
	})
}

// HandleAggregate triggers one aggregation pass. The engine's
// in-flight guards make a concurrent trigger a no-op.
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	// Detached from the request context so the pass survives the 202.
	go h.Aggregator.RunOnce(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleIndexHeight indexes a single height synchronously.
func (h *Handler) HandleIndexHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil || height <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid height"})
		return
	}

	if err := h.Indexer.IndexBlock(r.Context(), height); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "indexed", "height": height})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("api response encode failed", "error", err)
	}
}
