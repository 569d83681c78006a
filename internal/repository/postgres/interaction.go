package postgres

import (
	"context"
	"fmt"

	"github.com/knoguchi/prodsearch/internal/repository"
)

// InteractionRepo implements repository.InteractionRepository
type InteractionRepo struct {
	db *DB
}

// NewInteractionRepo creates a new interaction repository
func NewInteractionRepo(db *DB) *InteractionRepo {
	return &InteractionRepo{db: db}
}

// Create records a new interaction
func (r *InteractionRepo) Create(ctx context.Context, in *repository.Interaction) error {
	query := `
		INSERT INTO interactions (id, user_id, product_id, brand, category, event, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		in.ID, in.UserID, in.ProductID, in.Brand, in.Category, string(in.Event), in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}
	return nil
}

// ListByUser retrieves the most recent interactions for a user.
// limit <= 0 returns the full history.
func (r *InteractionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*repository.Interaction, error) {
	query := `
		SELECT id, user_id, product_id, brand, category, event, created_at
		FROM interactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var out []*repository.Interaction
	for rows.Next() {
		var in repository.Interaction
		var event string
		if err := rows.Scan(&in.ID, &in.UserID, &in.ProductID, &in.Brand, &in.Category,
			&event, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.Event = repository.EventType(event)
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}

	return out, nil
}

// limitArg binds a LIMIT parameter; NULL means no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// Ensure InteractionRepo implements the interface
var _ repository.InteractionRepository = (*InteractionRepo)(nil)
