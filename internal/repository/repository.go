// Package repository defines domain models and data access interfaces for catalog items and shopper interactions.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Item represents a catalog product as seen by search.
// Numeric fields are nil when the catalog has no usable value.
type Item struct {
	ProductID    string
	Name         string
	Brand        string
	Category     string
	Price        *float64
	Rating       *float64
	ReviewsCount *int
	ImageURL     string
	URL          string
	Currency     string
	Retailer     string
	Market       string
	Tags         string
	Contents     string
	Description  string
}

// EventType identifies a kind of shopper interaction
type EventType string

const (
	EventView      EventType = "view"
	EventClick     EventType = "click"
	EventAddToCart EventType = "add_to_cart"
	EventPurchase  EventType = "purchase"
)

// Weight returns how strongly the event signals preference. Unknown events weigh 0.
func (e EventType) Weight() float64 {
	switch e {
	case EventView:
		return 1
	case EventClick:
		return 2
	case EventAddToCart:
		return 3
	case EventPurchase:
		return 5
	default:
		return 0
	}
}

// Valid reports whether e is a known event type
func (e EventType) Valid() bool {
	return e.Weight() > 0
}

// Interaction records a single shopper event against a product.
// Brand and Category are captured at write time so history survives catalog edits.
type Interaction struct {
	ID        uuid.UUID
	UserID    string
	ProductID string
	Brand     string
	Category  string
	Event     EventType
	CreatedAt time.Time
}

// ItemRepository defines read access to the catalog
type ItemRepository interface {
	GetByID(ctx context.Context, productID string) (*Item, error)
}

// InteractionRepository defines operations for interaction history persistence
type InteractionRepository interface {
	Create(ctx context.Context, interaction *Interaction) error
	// ListByUser returns the most recent interactions for a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Interaction, error)
}
