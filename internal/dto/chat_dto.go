package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	OwnerId uuid.UUID `json:"owner_id"` // optional, anonymous conversations get a fresh owner
}

type CreateConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type SendChatRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	Query          string    `json:"query" validate:"required"`
	WebSearch      bool      `json:"web_search"` // explicit caller flag for the web route
}

type ThinkingStepDTO struct {
	Name        string                 `json:"name"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
	IsError     bool                   `json:"is_error"`
}

type DocumentDTO struct {
	Id      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float32 `json:"score"`
}

type SendChatResponse struct {
	ConversationId uuid.UUID         `json:"conversation_id"`
	Answer         string            `json:"answer"`
	FromCache      bool              `json:"from_cache"`
	Documents      []DocumentDTO     `json:"documents,omitempty"`
	Steps          []ThinkingStepDTO `json:"steps"`
	ElapsedMs      int64             `json:"elapsed_ms"`
}

type ChatHistoryMessage struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	Tag       map[string]string `json:"tag,omitempty"`
}

type GetChatHistoryResponse struct {
	ConversationId uuid.UUID            `json:"conversation_id"`
	Messages       []ChatHistoryMessage `json:"messages"`
}

type CacheStatsResponse struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

type ClearCacheResponse struct {
	Evicted int `json:"evicted"`
}
