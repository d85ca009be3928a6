package contract

import (
	"context"

	"ai-assistant-be/internal/model"
	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// DocumentRepository persists knowledge-base documents and their embeddings.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindOne(ctx context.Context, id uuid.UUID) (*model.Document, error)
	CreateEmbeddingsBulk(ctx context.Context, embeddings []*model.DocumentEmbedding) error
	DeleteEmbeddingsByDocumentId(ctx context.Context, documentId uuid.UUID) error

	// SearchSimilarWithScore returns documents whose embeddings have cosine
	// similarity >= threshold with the query vector, best match first.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.Document, error)
}
