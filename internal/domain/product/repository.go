package product

import (
	"context"
	"time"
)

// Repository is the product side of the transactional store. GetForUpdate
// must hold an exclusive lock on the product until the enclosing unit of
// work finishes; every read-modify-write of OnHand or Reserved goes through
// it.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	GetForUpdate(ctx context.Context, id string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	List(ctx context.Context) ([]*Product, error)
	ListActive(ctx context.Context) ([]*Product, error)
}

// RefillRepository stores refill suggestions keyed by (user, product).
type RefillRepository interface {
	Upsert(ctx context.Context, s *RefillSuggestion) error
	ListByUser(ctx context.Context, userID string) ([]*RefillSuggestion, error)
}

// AlertRepository is the append-only alert log.
type AlertRepository interface {
	Append(ctx context.Context, a *InventoryAlert) error
	ListUnresolved(ctx context.Context) ([]*InventoryAlert, error)
}

// LowStockDetectedEvent is emitted by the alert sweep for each active
// product at or below its threshold.
type LowStockDetectedEvent struct {
	ProductID  string
	OnHand     int
	Threshold  int
	OccurredAt time.Time
}

func (LowStockDetectedEvent) EventName() string { return "inventory.low_stock" }

// ExpiryApproachingEvent is emitted by the alert sweep for each active
// product expiring inside the sweep window.
type ExpiryApproachingEvent struct {
	ProductID  string
	ExpiryDate time.Time
	Days       int
	OccurredAt time.Time
}

func (ExpiryApproachingEvent) EventName() string { return "inventory.expiry_approaching" }
