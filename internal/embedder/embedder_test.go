package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "vitamin c serum", req.Prompt)

		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL + "/", Dimension: 3})
	vec, err := e.Embed(context.Background(), "vitamin c serum")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, vec, 1e-6)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "all-minilm", e.ModelName())
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL}).Embed(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("empty embedding", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"embedding":[]}`))
		}))
		defer srv.Close()

		_, err := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL}).Embed(context.Background(), "q")
		require.Error(t, err)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"embedding":[1,2]}`))
		}))
		defer srv.Close()

		_, err := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimension: 384}).Embed(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension mismatch")
	})

	t.Run("blank text", func(t *testing.T) {
		_, err := NewOllamaEmbedder(OllamaConfig{}).Embed(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyText)
	})
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dimension() int    { return 2 }
func (c *countingEmbedder) ModelName() string { return "counting" }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	var hits, misses int
	c, err := NewCachedEmbedder(inner, 2, CacheObserver{
		Hit:  func() { hits++ },
		Miss: func() { misses++ },
	})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Embed(ctx, "lipstick")
	require.NoError(t, err)
	first[0] = -1 // caller mutation must not leak into the cache

	second, err := c.Embed(ctx, "lipstick")
	require.NoError(t, err)
	assert.Equal(t, float32(8), second[0])
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	// evicts "lipstick" once capacity is exceeded
	c.Embed(ctx, "a")
	c.Embed(ctx, "bb")
	c.Embed(ctx, "lipstick")
	assert.Equal(t, 4, inner.calls)
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("ollama down")}
	c, err := NewCachedEmbedder(inner, 0, CacheObserver{})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "q")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, c.Len())
}
