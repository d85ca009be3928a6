package stream

// EventType tags a stream event. Consumers must treat unknown types as
// ignorable keepalive/metadata.
type EventType string

const (
	EventThinkingStart  EventType = "thinking_start"
	EventThinkingUpdate EventType = "thinking_update"
	EventAnswerChunk    EventType = "answer_chunk"
	EventAnswerComplete EventType = "answer_complete"
	EventDocumentsReady EventType = "documents_ready"
	EventError          EventType = "error"
	EventDone           EventType = "done"
	EventKeepalive      EventType = "keepalive"
)

// Event is one message on a stream. Exactly one Done or Error terminates a
// stream; no events follow it.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// IsTerminal reports whether this event ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
