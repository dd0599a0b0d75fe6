package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/models"
	"github.com/hanno79/Nexora-sub001/internal/pipeline"
)

// DualRunner runs one generate-then-review pass.
type DualRunner interface {
	Run(ctx context.Context, in pipeline.DualInput) (*models.DualGenerateResponse, error)
}

// IterativeRunner runs an N-round refinement.
type IterativeRunner interface {
	Run(ctx context.Context, in pipeline.IterativeInput) (*models.IterativeGenerateResponse, error)
}

// SettingsReader supplies the current AI settings.
type SettingsReader interface {
	Get() (models.AISettings, error)
}

// GenerateHandler handles the one-shot and iterative generation endpoints.
type GenerateHandler struct {
	dual      DualRunner
	iterative IterativeRunner
	settings  SettingsReader
	events    Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewGenerateHandler(dual DualRunner, iterative IterativeRunner, settings SettingsReader, events Publisher, timeout time.Duration, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		dual:      dual,
		iterative: iterative,
		settings:  settings,
		events:    events,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dual handles POST /generate-dual
func (h *GenerateHandler) Dual(w http.ResponseWriter, r *http.Request) {
	var req models.DualGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ai, err := h.settings.Get()
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	ctx, cancel := detached(r, h.timeout)
	defer cancel()
	resp, err := h.dual.Run(ctx, pipeline.DualInput{
		UserInput:       req.UserInput,
		ExistingContent: req.ExistingContent,
		Mode:            req.Mode,
		PrdID:           req.PrdID,
		Preference:      ai.ModelPreference,
	})
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	completed(h.events, req.PrdID, "dual", resp.ModelsUsed, resp.TokensUsed)
	writeJSON(w, http.StatusOK, resp)
}

// Iterative handles POST /generate-iterative. A zero iterationCount falls back
// to the saved setting.
func (h *GenerateHandler) Iterative(w http.ResponseWriter, r *http.Request) {
	var req models.IterativeGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ai, err := h.settings.Get()
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	count := req.IterationCount
	if count == 0 {
		count = ai.IterationCount
	}

	ctx, cancel := detached(r, h.timeout)
	defer cancel()
	resp, err := h.iterative.Run(ctx, pipeline.IterativeInput{
		ExistingContent:        req.ExistingContent,
		AdditionalRequirements: req.AdditionalRequirements,
		Mode:                   req.Mode,
		IterationCount:         count,
		UseFinalReview:         req.UseFinalReview,
		PrdID:                  req.PrdID,
		Preference:             ai.ModelPreference,
	})
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	completed(h.events, req.PrdID, "iterative", resp.ModelsUsed, resp.TokensUsed)
	writeJSON(w, http.StatusOK, resp)
}
