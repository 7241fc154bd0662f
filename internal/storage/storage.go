// Package storage defines the transactional store the ledger runs against.
// Every mutating operation executes inside one unit of work; products loaded
// through GetForUpdate stay exclusively locked until that unit of work
// commits or rolls back, which serializes concurrent check-then-act flows
// per product without any cross-product lock.
package storage

import (
	"context"

	"github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/order"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/domain/subscription"
)

// Tx exposes the entity repositories bound to one unit of work.
type Tx interface {
	Products() product.Repository
	Subscriptions() subscription.Repository
	Carts() cart.Repository
	Orders() order.Repository
	Refills() product.RefillRepository
	Alerts() product.AlertRepository
}

// Store runs units of work. fn either fully commits or leaves no trace;
// partial writes are never observable from outside the transaction.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
