package memory

import (
	"context"

	"github.com/pharmaracks/stockledger/internal/domain/subscription"
)

type subscriptionRepo struct{ t *tx }

func (r *subscriptionRepo) Create(ctx context.Context, s *subscription.Subscription) error {
	_ = ctx
	r.t.subCache[s.ID] = s.Clone()
	r.t.subDirty[s.ID] = true
	delete(r.t.subDeleted, s.ID)
	return nil
}

func (r *subscriptionRepo) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	_ = ctx
	if r.t.subDeleted[id] {
		return nil, subscription.ErrNotFound
	}
	if s, ok := r.t.subCache[id]; ok {
		return s.Clone(), nil
	}
	r.t.s.mu.RLock()
	s, ok := r.t.s.subscriptions[id]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *subscriptionRepo) Update(ctx context.Context, s *subscription.Subscription) error {
	if _, err := r.Get(ctx, s.ID); err != nil {
		return err
	}
	r.t.subCache[s.ID] = s.Clone()
	r.t.subDirty[s.ID] = true
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	r.t.subDeleted[id] = true
	return nil
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	return r.list(ctx, func(s *subscription.Subscription) bool { return s.UserID == userID })
}

func (r *subscriptionRepo) ListActiveByProduct(ctx context.Context, productID string) ([]*subscription.Subscription, error) {
	return r.list(ctx, func(s *subscription.Subscription) bool {
		return s.Active && s.ProductID == productID
	})
}

// list overlays the transaction's pending writes on the committed state so a
// recompute inside the transaction sees its own subscription changes.
func (r *subscriptionRepo) list(_ context.Context, match func(*subscription.Subscription) bool) ([]*subscription.Subscription, error) {
	seen := make(map[string]bool, len(r.t.subCache))
	var out []*subscription.Subscription
	for id, s := range r.t.subCache {
		seen[id] = true
		if r.t.subDeleted[id] {
			continue
		}
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	r.t.s.mu.RLock()
	for id, s := range r.t.s.subscriptions {
		if seen[id] || r.t.subDeleted[id] {
			continue
		}
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	r.t.s.mu.RUnlock()
	sortByID(out, func(s *subscription.Subscription) string { return s.ID })
	return out, nil
}
