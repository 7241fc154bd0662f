// Package memory is the in-process implementation of storage.Store. It is
// the store used by tests and single-binary runs; the postgres package is
// its durable counterpart.
//
// Locking mirrors the row-lock contract: GetForUpdate takes a per-product
// mutex held until the unit of work ends, so concurrent check-then-act flows
// on one product serialize while unrelated products proceed. Writes are
// buffered on the transaction and applied to the shared maps only on commit,
// which gives all-or-nothing visibility.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/order"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/domain/subscription"
	"github.com/pharmaracks/stockledger/internal/storage"
)

type Store struct {
	mu            sync.RWMutex
	products      map[string]*product.Product
	subscriptions map[string]*subscription.Subscription
	carts         map[string]*cart.Cart // keyed by user id
	orders        map[string]*order.Order
	refills       map[string]*product.RefillSuggestion // keyed by user id + "/" + product id
	alerts        []*product.InventoryAlert

	productLocks sync.Map // product id -> *sync.Mutex
}

func NewStore() *Store {
	return &Store{
		products:      make(map[string]*product.Product),
		subscriptions: make(map[string]*subscription.Subscription),
		carts:         make(map[string]*cart.Cart),
		orders:        make(map[string]*order.Order),
		refills:       make(map[string]*product.RefillSuggestion),
	}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	t := newTx(s)
	defer t.releaseLocks()
	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) productLock(id string) *sync.Mutex {
	m, _ := s.productLocks.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func refillKey(userID, productID string) string { return userID + "/" + productID }

type tx struct {
	s *Store

	heldLocks map[string]*sync.Mutex

	// Working copies seen by this transaction and applied on commit. A nil
	// subscription entry marks a delete.
	prodCache  map[string]*product.Product
	prodDirty  map[string]bool
	subCache   map[string]*subscription.Subscription
	subDirty   map[string]bool
	subDeleted map[string]bool
	cartDirty  map[string]*cart.Cart
	orderDirty map[string]*order.Order
	refillsNew map[string]*product.RefillSuggestion
	alertsNew  []*product.InventoryAlert
}

func newTx(s *Store) *tx {
	return &tx{
		s:          s,
		heldLocks:  make(map[string]*sync.Mutex),
		prodCache:  make(map[string]*product.Product),
		prodDirty:  make(map[string]bool),
		subCache:   make(map[string]*subscription.Subscription),
		subDirty:   make(map[string]bool),
		subDeleted: make(map[string]bool),
		cartDirty:  make(map[string]*cart.Cart),
		orderDirty: make(map[string]*order.Order),
		refillsNew: make(map[string]*product.RefillSuggestion),
	}
}

func (t *tx) Products() product.Repository           { return &productRepo{t: t} }
func (t *tx) Subscriptions() subscription.Repository { return &subscriptionRepo{t: t} }
func (t *tx) Carts() cart.Repository                 { return &cartRepo{t: t} }
func (t *tx) Orders() order.Repository               { return &orderRepo{t: t} }
func (t *tx) Refills() product.RefillRepository      { return &refillRepo{t: t} }
func (t *tx) Alerts() product.AlertRepository        { return &alertRepo{t: t} }

func (t *tx) lockProduct(id string) {
	if _, held := t.heldLocks[id]; held {
		return
	}
	m := t.s.productLock(id)
	m.Lock()
	t.heldLocks[id] = m
}

func (t *tx) releaseLocks() {
	for _, m := range t.heldLocks {
		m.Unlock()
	}
	t.heldLocks = nil
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, dirty := range t.prodDirty {
		if dirty {
			s.products[id] = t.prodCache[id].Clone()
		}
	}
	for id := range t.subDeleted {
		delete(s.subscriptions, id)
	}
	for id, dirty := range t.subDirty {
		if dirty && !t.subDeleted[id] {
			s.subscriptions[id] = t.subCache[id].Clone()
		}
	}
	for userID, c := range t.cartDirty {
		s.carts[userID] = c.Clone()
	}
	for id, o := range t.orderDirty {
		s.orders[id] = o.Clone()
	}
	for key, r := range t.refillsNew {
		if _, exists := s.refills[key]; !exists {
			cp := *r
			s.refills[key] = &cp
		}
	}
	for _, a := range t.alertsNew {
		cp := *a
		s.alerts = append(s.alerts, &cp)
	}
}

// sortByID keeps list results deterministic across runs.
func sortByID[T any](items []T, id func(T) string) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
