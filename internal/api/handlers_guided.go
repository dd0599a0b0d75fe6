package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// GuidedService is the guided session manager.
type GuidedService interface {
	Start(ctx context.Context, req *models.GuidedStartRequest) (*models.GuidedStartResponse, error)
	Answer(ctx context.Context, req *models.GuidedAnswerRequest) (*models.GuidedAnswerResponse, error)
	Finalize(ctx context.Context, req *models.GuidedFinalizeRequest) (*models.FinalContentResponse, error)
	Skip(ctx context.Context, req *models.GuidedSkipRequest) (*models.FinalContentResponse, error)
	Abandon(sessionID string) error
	Get(sessionID string) (*models.GenerationSession, error)
}

// Publisher fans document events out to subscribers.
type Publisher interface {
	Publish(ev models.DocumentEvent) int
	Count() int
}

// GuidedHandler handles the guided Q&A endpoints.
type GuidedHandler struct {
	svc     GuidedService
	events  Publisher
	timeout time.Duration
	logger  *slog.Logger
}

func NewGuidedHandler(svc GuidedService, events Publisher, timeout time.Duration, logger *slog.Logger) *GuidedHandler {
	return &GuidedHandler{svc: svc, events: events, timeout: timeout, logger: logger}
}

// Start handles POST /guided-start
func (h *GuidedHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.GuidedStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := detached(r, h.timeout)
	defer cancel()
	resp, err := h.svc.Start(ctx, &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	h.sessionUpdated(req.PrdID, resp.SessionID, 1, models.SessionStatusActive)
	writeJSON(w, http.StatusOK, resp)
}

// Answer handles POST /guided-answer
func (h *GuidedHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.GuidedAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	ctx, cancel := detached(r, h.timeout)
	defer cancel()
	resp, err := h.svc.Answer(ctx, &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	if sess, err := h.svc.Get(req.SessionID); err == nil {
		h.sessionUpdated(sess.PrdID, sess.ID, resp.RoundNumber, sess.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Finalize handles POST /guided-finalize
func (h *GuidedHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req models.GuidedFinalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	ctx, cancel := detached(r, h.timeout)
	defer cancel()
	resp, err := h.svc.Finalize(ctx, &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	if sess, err := h.svc.Get(req.SessionID); err == nil && sess.PrdID != "" {
		h.sessionUpdated(sess.PrdID, sess.ID, sess.RoundNumber, sess.Status)
		completed(h.events, sess.PrdID, "guided", resp.ModelsUsed, resp.TokensUsed)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Skip handles POST /guided-skip
func (h *GuidedHandler) Skip(w http.ResponseWriter, r *http.Request) {
	var req models.GuidedSkipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := detached(r, h.timeout)
	defer cancel()
	resp, err := h.svc.Skip(ctx, &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	completed(h.events, req.PrdID, "guided-skip", resp.ModelsUsed, resp.TokensUsed)
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /guided-sessions/{id}
func (h *GuidedHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Abandon handles POST /guided-sessions/{id}/abandon
func (h *GuidedHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Abandon(id); err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	if sess, err := h.svc.Get(id); err == nil {
		h.sessionUpdated(sess.PrdID, sess.ID, sess.RoundNumber, sess.Status)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GuidedHandler) sessionUpdated(prdID, sessionID string, round int, status models.SessionStatus) {
	if prdID == "" {
		return
	}
	h.events.Publish(models.DocumentEvent{
		Type:  models.EventGuidedSessionUpdated,
		PrdID: prdID,
		Data: map[string]any{
			"sessionId":   sessionID,
			"roundNumber": round,
			"status":      status,
		},
	})
}

// completed announces finished content on the document channel.
func completed(events Publisher, prdID, source string, modelsUsed []string, tokens int) {
	if prdID == "" {
		return
	}
	events.Publish(models.DocumentEvent{
		Type:  models.EventGenerationCompleted,
		PrdID: prdID,
		Data: map[string]any{
			"source":     source,
			"modelsUsed": modelsUsed,
			"tokensUsed": tokens,
		},
	})
}
