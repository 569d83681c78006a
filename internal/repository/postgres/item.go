package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/knoguchi/prodsearch/internal/repository"
)

// ItemRepo implements repository.ItemRepository
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new catalog item repository
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// GetByID retrieves a catalog item by product ID
func (r *ItemRepo) GetByID(ctx context.Context, productID string) (*repository.Item, error) {
	query := `
		SELECT product_id, name, brand, category, price, rating, reviews_count,
		       image_url, url, currency, retailer, market, tags, contents, description
		FROM products
		WHERE product_id = $1
	`

	var item repository.Item
	var name, brand, category, imageURL, url, currency, retailer, market, tags, contents, description *string

	err := r.db.Pool.QueryRow(ctx, query, productID).Scan(
		&item.ProductID, &name, &brand, &category, &item.Price, &item.Rating, &item.ReviewsCount,
		&imageURL, &url, &currency, &retailer, &market, &tags, &contents, &description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	item.Name = deref(name)
	item.Brand = deref(brand)
	item.Category = deref(category)
	item.ImageURL = deref(imageURL)
	item.URL = deref(url)
	item.Currency = deref(currency)
	item.Retailer = deref(retailer)
	item.Market = deref(market)
	item.Tags = deref(tags)
	item.Contents = deref(contents)
	item.Description = deref(description)

	return &item, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ensure ItemRepo implements the interface
var _ repository.ItemRepository = (*ItemRepo)(nil)
