package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when a non-positive cache size is requested.
const DefaultCacheSize = 1000

// CacheObserver is notified of cache lookups. Either func may be nil.
type CacheObserver struct {
	Hit  func()
	Miss func()
}

// CachedEmbedder memoizes query embeddings in an LRU keyed by model and text.
// Failed embeddings are never cached.
type CachedEmbedder struct {
	next     Embedder
	cache    *lru.Cache[string, []float32]
	observer CacheObserver
}

// NewCachedEmbedder wraps next with an LRU cache of the given size.
// A non-positive size selects DefaultCacheSize.
func NewCachedEmbedder(next Embedder, size int, observer CacheObserver) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache, observer: observer}, nil
}

// Embed returns a cached vector when present, otherwise delegates and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.cache.Get(key); ok {
		if c.observer.Hit != nil {
			c.observer.Hit()
		}
		return clone(vec), nil
	}
	if c.observer.Miss != nil {
		c.observer.Miss()
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clone(vec))
	return vec, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Dimension returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.next.Dimension()
}

// ModelName returns the wrapped embedder's model name.
func (c *CachedEmbedder) ModelName() string {
	return c.next.ModelName()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.next.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var _ Embedder = (*CachedEmbedder)(nil)
