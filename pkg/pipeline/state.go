package pipeline

import (
	"time"

	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// State is an explicit pipeline phase. Transitions only move forward;
// StateFinalized is terminal.
type State int

const (
	StateStart State = iota
	StateRouted
	StateRetrieved
	StateAnswered
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateRouted:
		return "routed"
	case StateRetrieved:
		return "retrieved"
	case StateAnswered:
		return "answered"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// ThinkingStep is one recorded unit of pipeline progress, used both for
// diagnostics and for live streaming. Steps are append-only in causal order.
type ThinkingStep struct {
	Name        string                 `json:"name"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
	IsError     bool                   `json:"is_error"`
}

// PipelineState carries everything one execution needs. It is created at
// pipeline start, owned solely by the executing worker and discarded after
// finalization, so it needs no locking.
type PipelineState struct {
	ConversationID uuid.UUID
	Query          string
	History        []store.Message
	ForceWebSearch bool

	UseWebSearch  bool
	RetrievedDocs []store.Document
	WebDocs       []store.Document
	ContextDocs   []store.Document
	Answer        string
	FromCache     bool
	Generated     bool
	Done          bool
	Steps         []ThinkingStep

	startedAt time.Time
}
