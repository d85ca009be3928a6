package search

import (
	"context"

	"ai-assistant-be/pkg/store"
)

// Retriever finds documents in the internal knowledge base.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]store.Document, error)
}

// WebSearcher finds documents on the public web. Used as the fallback source
// when a query needs fresh information the knowledge base cannot have.
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]store.Document, error)
}
