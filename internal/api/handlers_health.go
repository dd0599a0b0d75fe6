package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// DBChecker reports database health.
type DBChecker interface {
	HealthCheck() error
}

// ProviderChecker reports model provider health.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db       DBChecker
	provider ProviderChecker
	events   Publisher
}

func NewHealthHandler(db DBChecker, provider ProviderChecker, events Publisher) *HealthHandler {
	return &HealthHandler{db: db, provider: provider, events: events}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:      "ok",
		Subscribers: h.events.Count(),
	}

	// Check provider
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.provider.HealthCheck(ctx); err != nil {
		resp.Provider = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Provider = models.ServiceCheck{Status: "ok"}
	}

	// Check DB
	if err := h.db.HealthCheck(); err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
