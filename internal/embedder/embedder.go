// Package embedder turns query text into dense vectors for the product index.
package embedder

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when asked to embed blank text.
var ErrEmptyText = errors.New("text cannot be empty")

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// KnownDimensions maps Ollama embedding model names to their output size.
// The product index must be built with the same model used at query time.
var KnownDimensions = map[string]int{
	"all-minilm":             384,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"snowflake-arctic-embed": 1024,
	"bge-m3":                 1024,
}

// DimensionFor returns the known dimension for a model, or 0 if unknown.
func DimensionFor(model string) int {
	return KnownDimensions[model]
}
