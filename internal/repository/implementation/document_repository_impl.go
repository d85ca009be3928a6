package implementation

import (
	"context"
	"encoding/json"
	"errors"

	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var m model.Document
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *DocumentRepositoryImpl) CreateEmbeddingsBulk(ctx context.Context, embeddings []*model.DocumentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&embeddings).Error
}

func (r *DocumentRepositoryImpl) DeleteEmbeddingsByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("document_id = ?", documentId).
		Delete(&model.DocumentEmbedding{}).Error
}

// SearchSimilarWithScore runs a cosine similarity search via pgvector.
// The `<=>` operator is cosine distance, so similarity = 1 - distance.
func (r *DocumentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.Document, error) {
	if limit <= 0 {
		limit = 5
	}

	type row struct {
		model.Document
		Chunk      string
		Similarity float64
	}
	var rows []row

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("documents").
		Select("documents.*, document_embeddings.chunk as chunk, 1 - (document_embeddings.embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN document_embeddings ON document_embeddings.document_id = documents.id").
		Where("documents.deleted_at IS NULL").
		Where("document_embeddings.deleted_at IS NULL").
		Where("1 - (document_embeddings.embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	docs := make([]store.Document, len(rows))
	for i, res := range rows {
		// Prefer the matched chunk over the whole document so the context
		// budget is spent on the relevant slice.
		content := res.Chunk
		if content == "" {
			content = res.Content
		}
		docs[i] = store.Document{
			ID:       res.Id.String(),
			Title:    res.Title,
			Content:  content,
			Source:   res.Source,
			Score:    float32(res.Similarity),
			Metadata: unmarshalMetadata([]byte(res.Metadata)),
		}
	}
	return docs, nil
}

func unmarshalMetadata(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return meta
}
