package debate

import (
	model "github.com/zhouzirui/debate-arena/backend/internal/model/debate"
)

// EventType tags the session events fanned out to stream subscribers.
type EventType string

const (
	// EventMessage fires for every appended transcript entry.
	EventMessage EventType = "message"
	// EventStatus fires on every lifecycle transition.
	EventStatus EventType = "status"
	// EventError fires when a turn fails and the session pauses.
	EventError EventType = "error"
)

// Event is one session state change pushed to SSE/WebSocket subscribers.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"sessionId"`
	Status    model.Status   `json:"status,omitempty"`
	Round     int            `json:"round,omitempty"`
	Message   *model.Message `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
}
