package handlers

import (
	"context"
	"net/http"
	"time"

	"nfl-pickem/interfaces"
)

// HealthHandler reports liveness and storage reachability
type HealthHandler struct {
	store interfaces.HealthChecker
}

// NewHealthHandler creates a health handler. store may be nil when running on memory storage.
func NewHealthHandler(store interfaces.HealthChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Storage: "memory"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.TestConnection(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Storage: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Storage: "mongodb"})
}
