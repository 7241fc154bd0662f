package memory

import (
	"context"

	"github.com/pharmaracks/stockledger/internal/domain/product"
)

type productRepo struct{ t *tx }

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	_ = ctx
	r.t.prodCache[p.ID] = p.Clone()
	r.t.prodDirty[p.ID] = true
	return nil
}

func (r *productRepo) Get(ctx context.Context, id string) (*product.Product, error) {
	_ = ctx
	if p, ok := r.t.prodCache[id]; ok {
		return p.Clone(), nil
	}
	r.t.s.mu.RLock()
	p, ok := r.t.s.products[id]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, product.ErrNotFound
	}
	return p.Clone(), nil
}

// GetForUpdate locks the product for the rest of the transaction and loads
// a private working copy. Mutations become visible to others only on commit.
func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	_ = ctx
	r.t.lockProduct(id)
	if p, ok := r.t.prodCache[id]; ok {
		return p, nil
	}
	r.t.s.mu.RLock()
	p, ok := r.t.s.products[id]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, product.ErrNotFound
	}
	working := p.Clone()
	r.t.prodCache[id] = working
	return working, nil
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	_ = ctx
	if _, ok := r.t.prodCache[p.ID]; !ok {
		r.t.s.mu.RLock()
		_, exists := r.t.s.products[p.ID]
		r.t.s.mu.RUnlock()
		if !exists {
			return product.ErrNotFound
		}
	}
	r.t.prodCache[p.ID] = p
	r.t.prodDirty[p.ID] = true
	return nil
}

func (r *productRepo) List(ctx context.Context) ([]*product.Product, error) {
	return r.list(ctx, func(*product.Product) bool { return true })
}

func (r *productRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	return r.list(ctx, func(p *product.Product) bool { return p.Active })
}

func (r *productRepo) list(_ context.Context, match func(*product.Product) bool) ([]*product.Product, error) {
	seen := make(map[string]bool, len(r.t.prodCache))
	var out []*product.Product
	for id, p := range r.t.prodCache {
		seen[id] = true
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	r.t.s.mu.RLock()
	for id, p := range r.t.s.products {
		if seen[id] {
			continue
		}
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	r.t.s.mu.RUnlock()
	sortByID(out, func(p *product.Product) string { return p.ID })
	return out, nil
}
