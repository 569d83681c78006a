package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/knoguchi/prodsearch/internal/affinity"
	"github.com/knoguchi/prodsearch/internal/metrics"
	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/reranker"
	"github.com/knoguchi/prodsearch/internal/retrieval"
)

// SearchConfig holds the search limits
type SearchConfig struct {
	MaxTopK        int
	CandidateWidth int           // minimum number of candidates handed to the reranker
	Timeout        time.Duration // bound on the index call
	HistoryLimit   int           // interactions considered when deriving affinity
	DefaultUserID  string        // history used for anonymous requests; empty disables
}

// SearchRequest is one search. Nil affinity maps mean "derive from history".
type SearchRequest struct {
	Query            string
	Category         string
	TopK             int
	UserID           string
	BrandAffinity    map[string]float64
	CategoryAffinity map[string]float64
	PriceBand        reranker.PriceBand
}

// SearchResult is one ranked product
type SearchResult struct {
	Rank         int      `json:"rank"`
	ProductID    string   `json:"product_id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Category     string   `json:"category"`
	Price        *float64 `json:"price"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int     `json:"reviews_count"`
	ImageURL     string   `json:"image_url"`
	URL          string   `json:"url"`
	Currency     string   `json:"currency,omitempty"`
	Retailer     string   `json:"retailer,omitempty"`
	Market       string   `json:"market,omitempty"`
	Score        float64  `json:"score"`
}

// SearchResponse is the ranked result list. An empty list is a valid answer.
type SearchResponse struct {
	Query    string         `json:"query"`
	Category string         `json:"category,omitempty"`
	Count    int            `json:"count"`
	Results  []SearchResult `json:"results"`
}

// SearchService runs retrieval and reranking for a request. It keeps no
// per-request state and is safe for concurrent use.
type SearchService struct {
	retriever *retrieval.Retriever
	history   repository.InteractionRepository
	cfg       SearchConfig
	logger    *slog.Logger
}

// SearchServiceOption is a functional option for configuring SearchService.
type SearchServiceOption func(*SearchService)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearchService creates a new SearchService. history may be nil, which
// disables personalization.
func NewSearchService(retriever *retrieval.Retriever, history repository.InteractionRepository, cfg SearchConfig, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		retriever: retriever,
		history:   history,
		cfg:       cfg,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Search retrieves candidates for the query and returns them reranked.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	resp, err := s.search(ctx, req)
	metrics.SearchLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil && resp.Count == 0:
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeEmpty).Inc()
	case err == nil:
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	case errors.Is(err, ErrInvalidRequest):
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
	case retrieval.IsRetrievalFailure(err):
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeUnavailable).Inc()
	default:
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeError).Inc()
	}
	if err == nil {
		metrics.SearchResults.Observe(float64(resp.Count))
	}

	return resp, err
}

func (s *SearchService) search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if err := s.validate(query, req); err != nil {
		return nil, err
	}

	width := max(s.cfg.CandidateWidth, req.TopK)

	retrieveCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		retrieveCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	pool, err := s.retriever.Retrieve(retrieveCtx, query, width, req.Category)
	if err != nil {
		s.logger.Error("candidate retrieval failed",
			"query", query,
			"category", req.Category,
			"error", err,
		)
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}

	aff := s.resolveAffinity(ctx, req)
	ranked := reranker.Rerank(pool, aff, req.PriceBand, req.TopK)

	results := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = toSearchResult(i+1, r)
	}

	s.logger.Debug("search completed",
		"query", query,
		"category", req.Category,
		"pool", len(pool),
		"results", len(results),
	)

	return &SearchResponse{
		Query:    query,
		Category: req.Category,
		Count:    len(results),
		Results:  results,
	}, nil
}

func (s *SearchService) validate(query string, req SearchRequest) error {
	if query == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if req.TopK < 1 || req.TopK > s.cfg.MaxTopK {
		return fmt.Errorf("%w: top_k must be in [1, %d], got %d", ErrInvalidRequest, s.cfg.MaxTopK, req.TopK)
	}
	if b := req.PriceBand; b.Low != nil && b.High != nil && *b.Low > *b.High {
		return fmt.Errorf("%w: price band low %g exceeds high %g", ErrInvalidRequest, *b.Low, *b.High)
	}
	if err := validateWeights("brand_aff", req.BrandAffinity); err != nil {
		return err
	}
	return validateWeights("cat_aff", req.CategoryAffinity)
}

func validateWeights(field string, weights map[string]float64) error {
	for k, v := range weights {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s[%q] must be in [0, 1], got %g", ErrInvalidRequest, field, k, v)
		}
	}
	return nil
}

// resolveAffinity prefers maps supplied with the request and otherwise derives
// them from the shopper's history. History failures degrade to no affinity.
func (s *SearchService) resolveAffinity(ctx context.Context, req SearchRequest) reranker.AffinityMaps {
	if req.BrandAffinity != nil || req.CategoryAffinity != nil {
		return reranker.AffinityMaps{
			Brand:    affinity.Normalize(req.BrandAffinity),
			Category: affinity.Normalize(req.CategoryAffinity),
		}
	}

	userID := req.UserID
	if userID == "" {
		userID = s.cfg.DefaultUserID
	}
	if userID == "" || s.history == nil {
		return reranker.AffinityMaps{}
	}

	history, err := s.history.ListByUser(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Warn("failed to load interaction history, ranking without affinity",
			"user_id", userID,
			"error", err,
		)
		return reranker.AffinityMaps{}
	}
	return affinity.FromInteractions(history)
}

func toSearchResult(rank int, r reranker.ScoredItem) SearchResult {
	return SearchResult{
		Rank:         rank,
		ProductID:    r.Item.ProductID,
		Name:         r.Item.Name,
		Brand:        r.Item.Brand,
		Category:     r.Item.Category,
		Price:        r.Item.Price,
		Rating:       r.Item.Rating,
		ReviewsCount: r.Item.ReviewsCount,
		ImageURL:     r.Item.ImageURL,
		URL:          r.Item.URL,
		Currency:     r.Item.Currency,
		Retailer:     r.Item.Retailer,
		Market:       r.Item.Market,
		Score:        math.Round(r.Score*1000) / 1000,
	}
}
