package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_ANSWER_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewDocumentIngested is published after a knowledge-base document is stored
// and its embedding job is queued.
func NewDocumentIngested(documentID uuid.UUID, title string) Event {
	return BaseEvent{
		Type: "DOCUMENT_INGESTED",
		Data: map[string]interface{}{
			"document_id": documentID.String(),
			"title":       title,
		},
		OccurredAt: time.Now(),
	}
}

// NewChatAnswerCompleted is published after a pipeline execution finalizes,
// so downstream consumers (analytics, notifications) can react.
func NewChatAnswerCompleted(conversationID uuid.UUID, fromCache bool, elapsedMs int64, steps int) Event {
	return BaseEvent{
		Type: "CHAT_ANSWER_COMPLETED",
		Data: map[string]interface{}{
			"conversation_id": conversationID.String(),
			"from_cache":      fromCache,
			"elapsed_ms":      elapsedMs,
			"steps":           steps,
		},
		OccurredAt: time.Now(),
	}
}
