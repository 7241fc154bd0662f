// Package catalog manages the product records the ledger tracks stock for.
// Mutations are admin-only; reads serve the storefront.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pharmaracks/stockledger/internal/domain/identity"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/observability"
	"github.com/pharmaracks/stockledger/internal/observability/logctx"
	"github.com/pharmaracks/stockledger/internal/pkg/clock"
	"github.com/pharmaracks/stockledger/internal/storage"
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store storage.Store
	ids   IDGenerator
	clock clock.Clock
	log   observability.Logger
}

func NewService(store storage.Store, ids IDGenerator, clk clock.Clock, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store: store,
		ids:   ids,
		clock: clk,
		log:   tel.Logger().With(observability.F("component", "catalog_service")),
	}
}

type CreateProductInput struct {
	Name              string
	Brand             string
	PriceCents        int64
	OnHand            int
	LowStockThreshold int
	ExpiryDate        time.Time
}

// CreateProduct registers a new product. Threshold zero keeps the default.
func (s *Service) CreateProduct(ctx context.Context, actor identity.Principal, in CreateProductInput) (*product.Product, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("catalog: product name is required")
	}
	if in.PriceCents < 0 {
		return nil, fmt.Errorf("catalog: price must not be negative")
	}

	now := s.clock.Now()
	p, err := product.New(s.ids.NewID(), in.Name, in.Brand, in.PriceCents, in.OnHand, in.ExpiryDate, now)
	if err != nil {
		return nil, err
	}
	if in.LowStockThreshold > 0 {
		p.LowStockThreshold = in.LowStockThreshold
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Products().Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromOr(ctx, s.log).Info("product_created",
		observability.F("product_id", p.ID),
		observability.F("name", p.Name),
	)
	return p, nil
}

// SetStock replaces the on-hand count. The reserved total is re-clamped
// against the new level inside the same lock, so a stock cut can never
// leave reserved above on-hand.
func (s *Service) SetStock(ctx context.Context, actor identity.Principal, productID string, quantity int) (*product.Product, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var updated *product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := p.SetOnHand(quantity, now); err != nil {
			return err
		}
		if err := tx.Products().Update(ctx, p); err != nil {
			return err
		}
		updated = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromOr(ctx, s.log).Info("product_stock_set",
		observability.F("product_id", productID),
		observability.F("on_hand", updated.OnHand),
		observability.F("reserved", updated.Reserved),
	)
	return updated, nil
}

// SetActive soft-activates or soft-deactivates a product. Deactivation
// leaves the record, existing orders and subscriptions, in place.
func (s *Service) SetActive(ctx context.Context, actor identity.Principal, productID string, active bool) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	now := s.clock.Now()
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		p.SetActive(active, now)
		return tx.Products().Update(ctx, p)
	})
	if err != nil {
		return err
	}
	logctx.FromOr(ctx, s.log).Info("product_active_set",
		observability.F("product_id", productID),
		observability.F("active", active),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, productID string) (*product.Product, error) {
	var p *product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Products().Get(ctx, productID)
		return err
	})
	return p, err
}

// ListActive returns the storefront catalog.
func (s *Service) ListActive(ctx context.Context) ([]*product.Product, error) {
	var products []*product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		products, err = tx.Products().ListActive(ctx)
		return err
	})
	return products, err
}

// List returns every product including deactivated ones. Admin-only.
func (s *Service) List(ctx context.Context, actor identity.Principal) ([]*product.Product, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var products []*product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		products, err = tx.Products().List(ctx)
		return err
	})
	return products, err
}
