package cart

import "context"

type Repository interface {
	// GetByUser returns the user's cart or ErrNotFound; carts are created on
	// first use by the application layer.
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	// Save upserts the whole aggregate, items included.
	Save(ctx context.Context, c *Cart) error
}
