package search

import (
	"context"
	"fmt"

	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/store"
)

// DocumentIndex is the narrow slice of the document repository the retriever
// needs: a similarity search over stored embeddings.
type DocumentIndex interface {
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.Document, error)
}

// VectorRetriever implements Retriever on top of the pgvector-backed
// document index.
type VectorRetriever struct {
	index     DocumentIndex
	embedder  embedding.EmbeddingProvider
	threshold float64
}

func NewVectorRetriever(index DocumentIndex, embedder embedding.EmbeddingProvider, threshold float64) *VectorRetriever {
	if threshold <= 0 {
		threshold = 0.3
	}
	return &VectorRetriever{
		index:     index,
		embedder:  embedder,
		threshold: threshold,
	}
}

func (r *VectorRetriever) Search(ctx context.Context, query string, k int) ([]store.Document, error) {
	vec, err := r.embedder.Generate(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := r.index.SearchSimilarWithScore(ctx, vec, k, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return docs, nil
}
