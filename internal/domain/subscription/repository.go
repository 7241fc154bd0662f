package subscription

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*Subscription, error)
	// ListActiveByProduct returns every active subscription holding stock of
	// the product. The ledger sums ReservedStock over this set to recompute
	// the product's reserved total.
	ListActiveByProduct(ctx context.Context, productID string) ([]*Subscription, error)
}

// ReservedEvent is emitted after a subscription starts holding stock.
type ReservedEvent struct {
	SubscriptionID string
	ProductID      string
	ReservedStock  int
	OccurredAt     time.Time
}

func (ReservedEvent) EventName() string { return "subscription.reserved" }

// ReleasedEvent is emitted after a subscription stops holding stock.
type ReleasedEvent struct {
	SubscriptionID string
	ProductID      string
	OccurredAt     time.Time
}

func (ReleasedEvent) EventName() string { return "subscription.released" }
