package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knoguchi/prodsearch/internal/repository"
)

// CatalogService serves direct item lookups and records shopper interactions.
type CatalogService struct {
	items        repository.ItemRepository
	interactions repository.InteractionRepository
	now          func() time.Time
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(items repository.ItemRepository, interactions repository.InteractionRepository) *CatalogService {
	return &CatalogService{
		items:        items,
		interactions: interactions,
		now:          time.Now,
	}
}

// GetItem returns a catalog item or repository.ErrNotFound.
func (s *CatalogService) GetItem(ctx context.Context, productID string) (*repository.Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidRequest)
	}

	item, err := s.items.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", productID, err)
	}
	return item, nil
}

// RecordRequest describes a shopper event to store
type RecordRequest struct {
	UserID    string
	ProductID string
	Event     repository.EventType
}

// RecordInteraction stores an event, capturing the product's current brand
// and category for later affinity derivation.
func (s *CatalogService) RecordInteraction(ctx context.Context, req RecordRequest) (*repository.Interaction, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if !req.Event.Valid() {
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidRequest, req.Event)
	}

	item, err := s.GetItem(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	in := &repository.Interaction{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: item.ProductID,
		Brand:     item.Brand,
		Category:  item.Category,
		Event:     req.Event,
		CreatedAt: s.now().UTC(),
	}
	if err := s.interactions.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("recording interaction: %w", err)
	}
	return in, nil
}
