// Package config loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// TopKLimit is the largest result count a search request may ask for.
const TopKLimit = 50

// Config holds all configuration for the product search service
type Config struct {
	// Server
	AppName     string `env:"APP_NAME" envDefault:"E-commerce Recommender API"`
	AppVersion  string `env:"APP_VERSION" envDefault:"1.0.0"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8000"`
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"9090"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// PostgreSQL (empty: serve the catalog from the index and keep interactions in memory)
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`

	// Qdrant
	QdrantGRPCURL    string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"products"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"all-minilm"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`
	EmbedCacheSize       int    `env:"EMBED_CACHE_SIZE" envDefault:"1000"`

	// Search
	DefaultTopK    int           `env:"DEFAULT_TOP_K" envDefault:"5"`
	MaxTopK        int           `env:"MAX_TOP_K" envDefault:"50"`
	CandidateWidth int           `env:"CANDIDATE_WIDTH" envDefault:"50"`
	SearchTimeout  time.Duration `env:"SEARCH_TIMEOUT" envDefault:"10s"`
	HistoryLimit   int           `env:"HISTORY_LIMIT" envDefault:"200"`
	DefaultUserID  string        `env:"DEFAULT_USER_ID" envDefault:"u_0001"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"prodsearch"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that search limits are consistent
func (c *Config) Validate() error {
	if c.MaxTopK < 1 || c.MaxTopK > TopKLimit {
		return fmt.Errorf("MAX_TOP_K must be in [1, %d], got %d", TopKLimit, c.MaxTopK)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > c.MaxTopK {
		return fmt.Errorf("DEFAULT_TOP_K must be in [1, %d], got %d", c.MaxTopK, c.DefaultTopK)
	}
	if c.CandidateWidth < 1 {
		return fmt.Errorf("CANDIDATE_WIDTH must be at least 1, got %d", c.CandidateWidth)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("SEARCH_TIMEOUT must be positive, got %s", c.SearchTimeout)
	}
	return nil
}
