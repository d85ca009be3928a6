package store

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation entry. Messages are immutable once
// appended; the conversation store never edits or reorders them.
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	Tag       map[string]string `json:"tag,omitempty"`
}
