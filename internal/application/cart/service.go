// Package cart implements basket operations. Quantity checks always run
// against available stock (on-hand minus reserved) under the product lock,
// so cart customers can never claim units held for subscriptions.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/pharmaracks/stockledger/internal/domain/cart"
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
		log:   tel.Logger().With(observability.F("component", "cart_service")),
	}
}

// AddItem puts quantity units of the product into the user's cart, creating
// the cart on first use. Adding a product already in the cart sums the
// quantities, and the combined total is validated against availability.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domcart.Cart, error) {
	if quantity <= 0 {
		return nil, product.ErrInvalidQuantity
	}
	now := s.clock.Now()
	var result *domcart.Cart
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !p.Sellable(now) {
			return product.ErrUnavailable
		}
		c, err := s.getOrCreateCart(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		total := c.Quantity(productID) + quantity
		if total > p.Available() {
			return fmt.Errorf("%w: only %d available", product.ErrInsufficientStock, p.Available())
		}
		c.SetQuantity(productID, total, now)
		if err := tx.Carts().Save(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromOr(ctx, s.log).Info("cart_item_added",
		observability.F("user_id", userID),
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	return result, nil
}

// UpdateItem sets the absolute quantity of a product in the cart. A
// quantity of zero or less removes the item; that is treated as removal,
// not an error.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domcart.Cart, error) {
	now := s.clock.Now()
	var result *domcart.Cart
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			if err := c.Remove(productID, now); err != nil {
				return err
			}
			if err := tx.Carts().Save(ctx, c); err != nil {
				return err
			}
			result = c
			return nil
		}
		if c.Quantity(productID) == 0 {
			return domcart.ErrItemNotFound
		}
		p, err := tx.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > p.Available() {
			return fmt.Errorf("%w: only %d available", product.ErrInsufficientStock, p.Available())
		}
		c.SetQuantity(productID, quantity, now)
		if err := tx.Carts().Save(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem drops the product from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	now := s.clock.Now()
	return s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := c.Remove(productID, now); err != nil {
			return err
		}
		return tx.Carts().Save(ctx, c)
	})
}

// Clear removes every item from the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	now := s.clock.Now()
	return s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		c.Clear(now)
		return tx.Carts().Save(ctx, c)
	})
}

// Get returns the user's cart, creating it on first use.
func (s *Service) Get(ctx context.Context, userID string) (*domcart.Cart, error) {
	now := s.clock.Now()
	var result *domcart.Cart
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := s.getOrCreateCart(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if err := tx.Carts().Save(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	return result, err
}

func (s *Service) getOrCreateCart(ctx context.Context, tx storage.Tx, userID string, now time.Time) (*domcart.Cart, error) {
	c, err := tx.Carts().GetByUser(ctx, userID)
	if errors.Is(err, domcart.ErrNotFound) {
		return domcart.New(s.ids.NewID(), userID, now), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
