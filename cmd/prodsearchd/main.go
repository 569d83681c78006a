package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/prodsearch/internal/auth"
	"github.com/knoguchi/prodsearch/internal/config"
	"github.com/knoguchi/prodsearch/internal/embedder"
	"github.com/knoguchi/prodsearch/internal/llm"
	"github.com/knoguchi/prodsearch/internal/memory"
	"github.com/knoguchi/prodsearch/internal/metrics"
	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/repository/postgres"
	"github.com/knoguchi/prodsearch/internal/retrieval"
	"github.com/knoguchi/prodsearch/internal/server"
	"github.com/knoguchi/prodsearch/internal/service"
	"github.com/knoguchi/prodsearch/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting product search service",
		"app", cfg.AppName,
		"version", cfg.AppVersion,
		"grpc_port", cfg.GRPCPort,
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	metrics.Init()

	// Qdrant holds the product embeddings and their catalog payloads
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	var embed embedder.Embedder = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	if cfg.EmbedCacheSize > 0 {
		cached, err := embedder.NewCachedEmbedder(embed, cfg.EmbedCacheSize, embedder.CacheObserver{
			Hit:  metrics.EmbeddingCacheHits.Inc,
			Miss: metrics.EmbeddingCacheMisses.Inc,
		})
		if err != nil {
			return err
		}
		embed = cached
	}
	slog.Info("initialized Ollama embedder",
		"model", cfg.OllamaEmbeddingModel,
		"cache_size", cfg.EmbedCacheSize,
	)

	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)

	index := retrieval.NewEmbeddingIndex(embed, vectorStore, cfg.QdrantCollection)

	// Catalog lookups and interaction history live in PostgreSQL when configured,
	// otherwise in the index payloads and process memory.
	var (
		items        repository.ItemRepository
		interactions repository.InteractionRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		slog.Info("connected to PostgreSQL")

		items = postgres.NewItemRepo(db)
		interactions = postgres.NewInteractionRepo(db)
	} else {
		store := memory.DefaultStore()
		defer store.Close()
		slog.Warn("DATABASE_URL not set, serving items from the index and keeping interactions in memory")

		items = retrieval.NewIndexCatalog(vectorStore, cfg.QdrantCollection)
		interactions = store
	}

	searchSvc := service.NewSearchService(retrieval.NewRetriever(index), interactions, service.SearchConfig{
		MaxTopK:        cfg.MaxTopK,
		CandidateWidth: cfg.CandidateWidth,
		Timeout:        cfg.SearchTimeout,
		HistoryLimit:   cfg.HistoryLimit,
		DefaultUserID:  cfg.DefaultUserID,
	}, service.WithLogger(slog.Default()))
	catalogSvc := service.NewCatalogService(items, interactions)
	explainSvc := service.NewExplainService(catalogSvc, llmClient, cfg.OllamaLLMModel)

	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: cfg.JWTIssuer,
	})

	grpcServer := server.NewGRPCServer(server.GRPCServerConfig{
		Port:      cfg.GRPCPort,
		Logger:    slog.Default(),
		Readiness: index,
	})

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
	}, server.API{
		Search:      searchSvc,
		Catalog:     catalogSvc,
		Explain:     explainSvc,
		Readiness:   index,
		Auth:        jwtManager,
		DefaultTopK: cfg.DefaultTopK,
		AppName:     cfg.AppName,
		AppVersion:  cfg.AppVersion,
	})

	errCh := make(chan error, 2)

	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	slog.Info("shutting down servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown gRPC server", "error", err)
	}

	slog.Info("servers stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.ItemRepository        = (*postgres.ItemRepo)(nil)
	_ repository.ItemRepository        = (*retrieval.IndexCatalog)(nil)
	_ repository.InteractionRepository = (*postgres.InteractionRepo)(nil)
	_ repository.InteractionRepository = (*memory.Store)(nil)
	_ vectorstore.VectorStore          = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder                = (*embedder.CachedEmbedder)(nil)
	_ retrieval.VectorIndex            = (*retrieval.EmbeddingIndex)(nil)
	_ server.ReadinessChecker          = (*retrieval.EmbeddingIndex)(nil)
	_ llm.LLM                          = (*llm.OllamaClient)(nil)
)
