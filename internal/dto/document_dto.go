package dto

import "github.com/google/uuid"

// PublishEmbedDocumentMessage is the payload of the embedding job queued
// after a document is ingested.
type PublishEmbedDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}

type IngestDocumentRequest struct {
	Title    string                 `json:"title" validate:"required"`
	Content  string                 `json:"content" validate:"required"`
	Source   string                 `json:"source"`
	Metadata map[string]interface{} `json:"metadata"`
}

type IngestDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type SemanticSearchResult struct {
	Id      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float32 `json:"score"`
}

type SemanticSearchResponse struct {
	Query   string                 `json:"query"`
	Results []SemanticSearchResult `json:"results"`
}
