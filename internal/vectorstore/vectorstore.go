// Package vectorstore provides the nearest-neighbor product index backing candidate retrieval.
package vectorstore

import (
	"context"
)

// SearchResult is one indexed catalog item with its similarity to the query.
// Higher scores are closer.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// VectorStore defines the read operations search needs from the index
type VectorStore interface {
	// Query returns up to limit nearest items, closest first.
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error)

	// FindByField returns the first item whose metadata key equals value,
	// or nil when nothing matches.
	FindByField(ctx context.Context, collection, key, value string) (*SearchResult, error)

	// CollectionExists checks if a collection exists
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
