package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

// EventHandler lets the document store announce changes it made.
type EventHandler struct {
	events Publisher
}

func NewEventHandler(events Publisher) *EventHandler {
	return &EventHandler{events: events}
}

// Publish handles POST /documents/{prdId}/events
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req models.PublishEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	switch req.Type {
	case models.EventContentChanged, models.EventApprovalUpdated:
	default:
		writeError(w, http.StatusBadRequest, "type must be content-changed or approval-updated")
		return
	}

	n := h.events.Publish(models.DocumentEvent{
		Type:  req.Type,
		PrdID: chi.URLParam(r, "prdId"),
		Data:  req.Data,
	})
	writeJSON(w, http.StatusAccepted, map[string]int{"delivered": n})
}
