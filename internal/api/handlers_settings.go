package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/catalog"
	"github.com/hanno79/Nexora-sub001/internal/models"
)

// SettingsService reads and updates AI settings.
type SettingsService interface {
	Get() (models.AISettings, error)
	Update(req *models.UpdateSettingsRequest) (models.AISettings, error)
}

// UsageReader aggregates recorded model calls.
type UsageReader interface {
	Summary(since time.Time) (*models.UsageSummary, error)
}

// SettingsHandler serves AI settings, usage and the model catalog.
type SettingsHandler struct {
	settings SettingsService
	usage    UsageReader
	catalog  *catalog.Catalog
	logger   *slog.Logger
}

func NewSettingsHandler(settings SettingsService, usage UsageReader, cat *catalog.Catalog, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, usage: usage, catalog: cat, logger: logger}
}

// Get handles GET /settings/ai
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ai, err := h.settings.Get()
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ai)
}

// Update handles PATCH /settings/ai
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ai, err := h.settings.Update(&req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ai)
}

// Usage handles GET /usage?since=RFC3339
func (h *SettingsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}

	summary, err := h.usage.Summary(since)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Catalog handles GET /models/catalog
func (h *SettingsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}
