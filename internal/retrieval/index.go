package retrieval

import (
	"context"
	"fmt"

	"github.com/knoguchi/prodsearch/internal/embedder"
	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/vectorstore"
)

// EmbeddingIndex implements VectorIndex by embedding the query text and
// searching a vector store collection.
type EmbeddingIndex struct {
	embedder   embedder.Embedder
	store      vectorstore.VectorStore
	collection string
}

// NewEmbeddingIndex creates an index over the named collection.
func NewEmbeddingIndex(e embedder.Embedder, store vectorstore.VectorStore, collection string) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: e, store: store, collection: collection}
}

// Query embeds the query and returns the nearest items, closest first.
func (x *EmbeddingIndex) Query(ctx context.Context, query string, poolSize int) ([]Candidate, error) {
	vector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	results, err := x.store.Query(ctx, x.collection, vector, poolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		item := repository.ItemFromMetadata(r.Metadata)
		if item.ProductID == "" {
			item.ProductID = r.ID
		}
		candidates = append(candidates, Candidate{
			Item:       item,
			Similarity: float64(r.Score),
		})
	}
	return candidates, nil
}

// Ready reports whether the backing collection exists.
func (x *EmbeddingIndex) Ready(ctx context.Context) error {
	exists, err := x.store.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%w: collection %q does not exist", ErrIndexUnavailable, x.collection)
	}
	return nil
}

// IndexCatalog serves catalog item lookups from the index payloads, for
// deployments without a catalog database.
type IndexCatalog struct {
	store      vectorstore.VectorStore
	collection string
}

// NewIndexCatalog creates a catalog reader over the named collection.
func NewIndexCatalog(store vectorstore.VectorStore, collection string) *IndexCatalog {
	return &IndexCatalog{store: store, collection: collection}
}

// GetByID returns the indexed item with the given product_id.
func (c *IndexCatalog) GetByID(ctx context.Context, productID string) (*repository.Item, error) {
	res, err := c.store.FindByField(ctx, c.collection, repository.KeyProductID, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	if res == nil {
		return nil, repository.ErrNotFound
	}
	item := repository.ItemFromMetadata(res.Metadata)
	return &item, nil
}

var (
	_ VectorIndex               = (*EmbeddingIndex)(nil)
	_ repository.ItemRepository = (*IndexCatalog)(nil)
)
