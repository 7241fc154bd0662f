package product

import (
	"errors"
	"time"

	"github.com/pharmaracks/stockledger/internal/pkg/clock"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
	ErrUnavailable       = errors.New("product: unavailable")
)

// Product tracks physical stock for one catalog entry. OnHand is the number
// of units owned; Reserved is the slice of OnHand earmarked for active
// subscriptions. Only the difference may be sold through cart checkout.
//
// Reserved is a cached projection over active subscriptions. It is always
// recomputed from the subscription set as a whole, never adjusted by deltas,
// so an interrupted update can be healed by re-running the recompute.
type Product struct {
	ID                string
	Name              string
	Brand             string
	PriceCents        int64
	OnHand            int
	Reserved          int
	LowStockThreshold int
	ExpiryDate        time.Time
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func New(id, name, brand string, priceCents int64, onHand int, expiry time.Time, now time.Time) (*Product, error) {
	if onHand < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:                id,
		Name:              name,
		Brand:             brand,
		PriceCents:        priceCents,
		OnHand:            onHand,
		LowStockThreshold: 10,
		ExpiryDate:        clock.Date(expiry),
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Available is the quantity sellable right now: on-hand minus reserved,
// floored at zero.
func (p *Product) Available() int {
	if avail := p.OnHand - p.Reserved; avail > 0 {
		return avail
	}
	return 0
}

// Reserve sets the reserved total, clamped to on-hand. Reservation is
// advisory capacity, not a hard allocation: it never fails, it only caps.
func (p *Product) Reserve(total int, now time.Time) {
	if total < 0 {
		total = 0
	}
	if total > p.OnHand {
		total = p.OnHand
	}
	p.Reserved = total
	p.touch(now)
}

// DecrementOnHand consumes sellable stock. The check runs against Available,
// not OnHand, so subscription-reserved units cannot be sold to cart
// customers.
func (p *Product) DecrementOnHand(quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Available() {
		return ErrInsufficientStock
	}
	p.OnHand -= quantity
	p.touch(now)
	return nil
}

// SetOnHand replaces the on-hand count (admin stock edit) and re-clamps the
// reserved total against the new level.
func (p *Product) SetOnHand(quantity int, now time.Time) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	p.OnHand = quantity
	p.Reserve(p.Reserved, now)
	return nil
}

// SetActive soft-activates or soft-deactivates the product. Deactivated
// products stay on record so historical orders and subscriptions keep a
// valid reference.
func (p *Product) SetActive(active bool, now time.Time) {
	if p.Active == active {
		return
	}
	p.Active = active
	p.touch(now)
}

func (p *Product) IsLowStock() bool {
	return p.OnHand <= p.LowStockThreshold
}

func (p *Product) IsExpired(today time.Time) bool {
	return p.ExpiryDate.Before(clock.Date(today))
}

// DaysToExpiry may be negative for already-expired stock.
func (p *Product) DaysToExpiry(today time.Time) int {
	return int(p.ExpiryDate.Sub(clock.Date(today)).Hours() / 24)
}

// Sellable reports whether the product may enter a cart: active and not
// expired.
func (p *Product) Sellable(today time.Time) bool {
	return p.Active && !p.IsExpired(today)
}

func (p *Product) touch(now time.Time) {
	p.UpdatedAt = now
}

// Clone returns a deep copy, used by stores that hand out private copies.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
