package memory

import (
	"context"
	"fmt"

	"github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/order"
	"github.com/pharmaracks/stockledger/internal/domain/product"
)

type orderRepo struct{ t *tx }

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	r.t.orderDirty[o.ID] = o.Clone()
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	_ = ctx
	if o, ok := r.t.orderDirty[id]; ok {
		return o.Clone(), nil
	}
	r.t.s.mu.RLock()
	o, ok := r.t.s.orders[id]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

// UpdateStatus buffers the whole aggregate; the appended history entry is
// already on o, so committing the clone writes status and audit row
// together.
func (r *orderRepo) UpdateStatus(ctx context.Context, o *order.Order, _ order.StatusChange) error {
	if _, err := r.Get(ctx, o.ID); err != nil {
		return err
	}
	r.t.orderDirty[o.ID] = o.Clone()
	return nil
}

func (r *orderRepo) List(ctx context.Context) ([]*order.Order, error) {
	return r.list(ctx, func(*order.Order) bool { return true })
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return r.list(ctx, func(o *order.Order) bool { return o.UserID == userID })
}

func (r *orderRepo) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return r.list(ctx, func(o *order.Order) bool { return o.Status == status })
}

func (r *orderRepo) list(_ context.Context, match func(*order.Order) bool) ([]*order.Order, error) {
	seen := make(map[string]bool, len(r.t.orderDirty))
	var out []*order.Order
	for id, o := range r.t.orderDirty {
		seen[id] = true
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	r.t.s.mu.RLock()
	for id, o := range r.t.s.orders {
		if seen[id] {
			continue
		}
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	r.t.s.mu.RUnlock()
	sortByID(out, func(o *order.Order) string { return o.ID })
	return out, nil
}

type cartRepo struct{ t *tx }

func (r *cartRepo) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	_ = ctx
	if c, ok := r.t.cartDirty[userID]; ok {
		return c.Clone(), nil
	}
	r.t.s.mu.RLock()
	c, ok := r.t.s.carts[userID]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *cartRepo) Save(ctx context.Context, c *cart.Cart) error {
	_ = ctx
	if c == nil || c.UserID == "" {
		return fmt.Errorf("cart repository: user id is required")
	}
	r.t.cartDirty[c.UserID] = c.Clone()
	return nil
}

type refillRepo struct{ t *tx }

// Upsert keeps the earlier suggestion when one already exists for the
// (user, product) pair; only the first order for a product dates it.
func (r *refillRepo) Upsert(ctx context.Context, s *product.RefillSuggestion) error {
	_ = ctx
	key := refillKey(s.UserID, s.ProductID)
	if _, pending := r.t.refillsNew[key]; pending {
		return nil
	}
	r.t.s.mu.RLock()
	_, exists := r.t.s.refills[key]
	r.t.s.mu.RUnlock()
	if exists {
		return nil
	}
	cp := *s
	r.t.refillsNew[key] = &cp
	return nil
}

func (r *refillRepo) ListByUser(ctx context.Context, userID string) ([]*product.RefillSuggestion, error) {
	_ = ctx
	var out []*product.RefillSuggestion
	r.t.s.mu.RLock()
	for _, s := range r.t.s.refills {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	r.t.s.mu.RUnlock()
	sortByID(out, func(s *product.RefillSuggestion) string { return s.ProductID })
	return out, nil
}

type alertRepo struct{ t *tx }

func (r *alertRepo) Append(ctx context.Context, a *product.InventoryAlert) error {
	_ = ctx
	cp := *a
	r.t.alertsNew = append(r.t.alertsNew, &cp)
	return nil
}

func (r *alertRepo) ListUnresolved(ctx context.Context) ([]*product.InventoryAlert, error) {
	_ = ctx
	var out []*product.InventoryAlert
	r.t.s.mu.RLock()
	for _, a := range r.t.s.alerts {
		if !a.Resolved {
			cp := *a
			out = append(out, &cp)
		}
	}
	r.t.s.mu.RUnlock()
	return out, nil
}
