package order

import "context"

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// UpdateStatus persists the order's mutable fields (status, delivery
	// timestamp) and appends the history entry in the same unit of work;
	// both land or neither does.
	UpdateStatus(ctx context.Context, o *Order, change StatusChange) error
	List(ctx context.Context) ([]*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListByStatus(ctx context.Context, status Status) ([]*Order, error)
}
