package models

// DocumentEventType names a real-time notification.
type DocumentEventType string

const (
	EventSubscribe            DocumentEventType = "subscribe"
	EventSubscribed           DocumentEventType = "subscribed"
	EventContentChanged       DocumentEventType = "content-changed"
	EventApprovalUpdated      DocumentEventType = "approval-updated"
	EventGenerationCompleted  DocumentEventType = "generation-completed"
	EventGuidedSessionUpdated DocumentEventType = "guided-session-updated"
)

// DocumentEvent is pushed to every subscriber of a document channel.
type DocumentEvent struct {
	Type      DocumentEventType `json:"type"`
	PrdID     string            `json:"prdId,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// SubscribeMessage is sent by clients after opening the channel.
type SubscribeMessage struct {
	Type  DocumentEventType `json:"type"`
	PrdID string            `json:"prdId"`
}

// PublishEventRequest is the payload for POST /documents/{prdId}/events.
type PublishEventRequest struct {
	Type DocumentEventType `json:"type"`
	Data map[string]any    `json:"data,omitempty"`
}

// ServiceCheck is the health of one dependency.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	DB          ServiceCheck `json:"db"`
	Provider    ServiceCheck `json:"provider"`
	Subscribers int          `json:"subscribers"`
}
