// Package retrieval fetches product candidates for a query from the vector index.
//
// Retrieval over-fetches a pool from the index, optionally keeps only items whose
// category exactly matches the requested one (after trimming and case folding),
// and truncates to the requested width while preserving index order.
// Failures of the index or the embedding step are returned unchanged; retrieval
// never retries and an empty result is not an error.
package retrieval

import (
	"context"
	"errors"

	"github.com/knoguchi/prodsearch/internal/repository"
)

const (
	// OverFetchFactor multiplies the requested width to size the index pool,
	// leaving room for the category filter to discard candidates.
	OverFetchFactor = 20

	// MinPoolSize is the smallest pool requested from the index.
	MinPoolSize = 100
)

var (
	// ErrIndexUnavailable is returned when the vector index cannot serve a query.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmbeddingFailed is returned when the query could not be embedded.
	ErrEmbeddingFailed = errors.New("embedding failure")
)

// IsRetrievalFailure reports whether err means search is temporarily unavailable.
func IsRetrievalFailure(err error) bool {
	return errors.Is(err, ErrIndexUnavailable) || errors.Is(err, ErrEmbeddingFailed)
}

// Candidate pairs a catalog item with its raw similarity for one request.
type Candidate struct {
	Item       repository.Item
	Similarity float64
}

// VectorIndex returns the poolSize nearest catalog items for a query,
// ordered closest first.
type VectorIndex interface {
	Query(ctx context.Context, query string, poolSize int) ([]Candidate, error)
}

// Retriever is the candidate-fetch stage. It holds no mutable state and is
// safe for concurrent use.
type Retriever struct {
	index VectorIndex
}

// NewRetriever creates a retriever over the given index.
func NewRetriever(index VectorIndex) *Retriever {
	return &Retriever{index: index}
}

// PoolSize returns how many items to request from the index for a given width.
func PoolSize(width int) int {
	return max(OverFetchFactor*width, MinPoolSize)
}

// Retrieve returns up to width candidates in index order. A non-blank category
// keeps only candidates whose normalized category equals it.
func (r *Retriever) Retrieve(ctx context.Context, query string, width int, category string) ([]Candidate, error) {
	if width < 1 {
		return nil, nil
	}

	pool, err := r.index.Query(ctx, query, PoolSize(width))
	if err != nil {
		return nil, err
	}

	if want := repository.NormalizeKey(category); want != "" {
		filtered := make([]Candidate, 0, min(len(pool), width))
		for _, c := range pool {
			if repository.NormalizeKey(c.Item.Category) == want {
				filtered = append(filtered, c)
				if len(filtered) == width {
					break
				}
			}
		}
		return filtered, nil
	}

	if len(pool) > width {
		pool = pool[:width]
	}
	return pool, nil
}
