// Package alert derives stock signals from the ledger: low-stock and
// expiry views for admins, the periodic sweep that turns those signals into
// events, refill advice from purchase history, and the analytics snapshot.
package alert

import (
	"context"
	"sort"
	"time"

	"github.com/pharmaracks/stockledger/internal/domain/event"
	"github.com/pharmaracks/stockledger/internal/domain/identity"
	"github.com/pharmaracks/stockledger/internal/domain/order"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/observability"
	"github.com/pharmaracks/stockledger/internal/observability/logctx"
	"github.com/pharmaracks/stockledger/internal/pkg/clock"
	"github.com/pharmaracks/stockledger/internal/storage"
)

const (
	// DefaultExpiryWindowDays is the sweep's look-ahead for expiring stock.
	DefaultExpiryWindowDays = 30

	// adviseMinPurchases and adviseQuietDays gate the refill advisor: a
	// product qualifies after repeat purchases and a gap long enough that
	// the buyer is probably running out.
	adviseMinPurchases = 2
	adviseQuietDays    = 20
)

type Service struct {
	store     storage.Store
	clock     clock.Clock
	publisher event.Publisher
	tel       observability.Observability
	log       observability.Logger
}

func NewService(store storage.Store, clk clock.Clock, publisher event.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store:     store,
		clock:     clk,
		publisher: publisher,
		tel:       tel,
		log:       tel.Logger().With(observability.F("component", "alert_service")),
	}
}

// LowStock returns active products at or below their threshold. Admin-only.
func (s *Service) LowStock(ctx context.Context, actor identity.Principal) ([]*product.Product, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var out []*product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		products, err := tx.Products().ListActive(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			if p.IsLowStock() {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// ExpiringWithin returns active products whose expiry date falls on or
// before today+days, soonest first. Already-expired stock is included, it is
// the most urgent entry in the view. Admin-only.
func (s *Service) ExpiringWithin(ctx context.Context, actor identity.Principal, days int) ([]*product.Product, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultExpiryWindowDays
	}
	today := s.clock.Now()
	var out []*product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		products, err := tx.Products().ListActive(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			if p.DaysToExpiry(today) <= days {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Sweep scans active products and publishes one event per signal found. The
// alert log itself is written by the subscribing worker, so the sweep stays
// read-only against the store.
func (s *Service) Sweep(ctx context.Context) error {
	now := s.clock.Now()
	var products []*product.Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		products, err = tx.Products().ListActive(ctx)
		return err
	})
	if err != nil {
		return err
	}

	lowStock, expiring := 0, 0
	for _, p := range products {
		if p.IsLowStock() {
			lowStock++
			s.publish(ctx, product.LowStockDetectedEvent{
				ProductID:  p.ID,
				OnHand:     p.OnHand,
				Threshold:  p.LowStockThreshold,
				OccurredAt: now,
			})
		}
		// The sweep announces upcoming expiries only; already-expired
		// stock shows in ExpiringWithin but is not re-announced on
		// every tick.
		if d := p.DaysToExpiry(now); d >= 0 && d <= DefaultExpiryWindowDays {
			expiring++
			s.publish(ctx, product.ExpiryApproachingEvent{
				ProductID:  p.ID,
				ExpiryDate: p.ExpiryDate,
				Days:       d,
				OccurredAt: now,
			})
		}
	}
	logctx.FromOr(ctx, s.log).Info("alert_sweep_done",
		observability.F("products", len(products)),
		observability.F("low_stock", lowStock),
		observability.F("expiring", expiring),
	)
	return nil
}

// Alerts returns the unresolved alert log. Admin-only.
func (s *Service) Alerts(ctx context.Context, actor identity.Principal) ([]*product.InventoryAlert, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var out []*product.InventoryAlert
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.Alerts().ListUnresolved(ctx)
		return err
	})
	return out, err
}

// RefillSuggestions returns the stored suggestions for the user.
func (s *Service) RefillSuggestions(ctx context.Context, userID string) ([]*product.RefillSuggestion, error) {
	var out []*product.RefillSuggestion
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.Refills().ListByUser(ctx, userID)
		return err
	})
	return out, err
}

// Advice is computed refill advice for one product, derived from delivered
// order history rather than stored suggestions.
type Advice struct {
	ProductID    string
	Purchases    int
	LastPurchase time.Time
}

// Advise scans the user's delivered orders and recommends products bought
// at least twice whose last purchase is more than twenty days ago.
func (s *Service) Advise(ctx context.Context, userID string) ([]Advice, error) {
	now := s.clock.Now()
	var orders []*order.Order
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		orders, err = tx.Orders().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	last := map[string]time.Time{}
	for _, o := range orders {
		if o.Status != order.StatusDelivered {
			continue
		}
		for _, it := range o.Items {
			counts[it.ProductID]++
			if o.CreatedAt.After(last[it.ProductID]) {
				last[it.ProductID] = o.CreatedAt
			}
		}
	}

	cutoff := now.AddDate(0, 0, -adviseQuietDays)
	var advice []Advice
	for id, n := range counts {
		if n < adviseMinPurchases {
			continue
		}
		if !last[id].Before(cutoff) {
			continue
		}
		advice = append(advice, Advice{ProductID: id, Purchases: n, LastPurchase: last[id]})
	}
	sort.Slice(advice, func(i, j int) bool { return advice[i].ProductID < advice[j].ProductID })
	return advice, nil
}

// Snapshot is the point-in-time analytics view over stock and orders.
type Snapshot struct {
	TakenAt            time.Time
	Products           int
	ActiveProducts     int
	LowStockProducts   int
	ExpiringProducts   int
	OnHandUnits        int
	ReservedUnits      int
	OrdersByStatus     map[order.Status]int
	RevenueCents       int64 // delivered orders only
	PendingOrdersValue int64
}

// Analytics aggregates the snapshot in one unit of work so the counters are
// mutually consistent. Admin-only.
func (s *Service) Analytics(ctx context.Context, actor identity.Principal) (*Snapshot, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	snap := &Snapshot{
		TakenAt:        now,
		OrdersByStatus: make(map[order.Status]int),
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		products, err := tx.Products().List(ctx)
		if err != nil {
			return err
		}
		snap.Products = len(products)
		for _, p := range products {
			if !p.Active {
				continue
			}
			snap.ActiveProducts++
			snap.OnHandUnits += p.OnHand
			snap.ReservedUnits += p.Reserved
			if p.IsLowStock() {
				snap.LowStockProducts++
			}
			if p.DaysToExpiry(now) <= DefaultExpiryWindowDays {
				snap.ExpiringProducts++
			}
		}
		orders, err := tx.Orders().List(ctx)
		if err != nil {
			return err
		}
		for _, o := range orders {
			snap.OrdersByStatus[o.Status]++
			switch o.Status {
			case order.StatusDelivered:
				snap.RevenueCents += o.TotalCents
			case order.StatusPending, order.StatusProcessing:
				snap.PendingOrdersValue += o.TotalCents
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.tel.Metrics().Counter(observability.MEventPublishFailures).Add(1,
			observability.L("event", e.EventName()),
		)
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
