// Package postgres is the durable store. Each unit of work maps to one
// database transaction; GetForUpdate takes a row lock (SELECT ... FOR
// UPDATE) that postgres holds until commit or rollback, giving the same
// per-product serialization the memory store provides with mutexes.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/order"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/domain/subscription"
	"github.com/pharmaracks/stockledger/internal/storage"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	t := &tx{q: pgtx}
	if err := fn(ctx, t); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

type tx struct {
	q pgx.Tx
}

func (t *tx) Products() product.Repository           { return &productRepo{q: t.q} }
func (t *tx) Subscriptions() subscription.Repository { return &subscriptionRepo{q: t.q} }
func (t *tx) Carts() cart.Repository                 { return &cartRepo{q: t.q} }
func (t *tx) Orders() order.Repository               { return &orderRepo{q: t.q} }
func (t *tx) Refills() product.RefillRepository      { return &refillRepo{q: t.q} }
func (t *tx) Alerts() product.AlertRepository        { return &alertRepo{q: t.q} }
