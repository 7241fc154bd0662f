// Package ledger keeps subscription reservations and product reserved
// totals consistent. The product's reserved quantity is always recomputed as
// the sum over its active subscriptions inside the same unit of work that
// changed them, never adjusted incrementally, so a crashed or interrupted
// update is healed by the next recompute (or by the Reconcile sweep).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmaracks/stockledger/internal/domain/event"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/domain/subscription"
	"github.com/pharmaracks/stockledger/internal/observability"
	"github.com/pharmaracks/stockledger/internal/observability/logctx"
	"github.com/pharmaracks/stockledger/internal/pkg/clock"
	"github.com/pharmaracks/stockledger/internal/storage"
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store     storage.Store
	ids       IDGenerator
	clock     clock.Clock
	publisher event.Publisher
	tel       observability.Observability

	log        observability.Logger
	recomputes observability.Counter
	reconciles observability.Counter
}

func NewService(store storage.Store, ids IDGenerator, clk clock.Clock, publisher event.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store:      store,
		ids:        ids,
		clock:      clk,
		publisher:  publisher,
		tel:        tel,
		log:        tel.Logger().With(observability.F("component", "subscription_ledger")),
		recomputes: tel.Metrics().Counter(observability.MReservationRecomputes),
		reconciles: tel.Metrics().Counter(observability.MReconcileRuns),
	}
}

type CreateInput struct {
	UserID       string
	ProductID    string
	Quantity     int
	Frequency    subscription.Frequency
	NextDelivery time.Time
}

// Create opens a subscription and reserves stock for its delivery horizon.
// The product must have enough available headroom for the full reservation
// before anything is written.
func (s *Service) Create(ctx context.Context, in CreateInput) (*subscription.Subscription, error) {
	ctx, span := s.tel.Tracer().Start(ctx, "Ledger.CreateSubscription",
		attribute.String("product.id", in.ProductID),
	)
	defer span.End()

	if in.Quantity <= 0 {
		return nil, subscription.ErrInvalidQuantity
	}
	if _, err := subscription.ParseFrequency(string(in.Frequency)); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var created *subscription.Subscription
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		need := subscription.ReservedUnits(in.Quantity, true)
		if p.Available() < need {
			return fmt.Errorf("%w: need %d units for the delivery horizon, %d available",
				product.ErrInsufficientStock, need, p.Available())
		}
		sub, err := subscription.New(s.ids.NewID(), in.UserID, in.ProductID, in.Quantity, in.Frequency, in.NextDelivery, now)
		if err != nil {
			return err
		}
		if err := tx.Subscriptions().Create(ctx, sub); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, p, now); err != nil {
			return err
		}
		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, subscription.ReservedEvent{
		SubscriptionID: created.ID,
		ProductID:      created.ProductID,
		ReservedStock:  created.ReservedStock,
		OccurredAt:     now,
	})
	logctx.FromOr(ctx, s.log).Info("subscription_created",
		observability.F("subscription_id", created.ID),
		observability.F("product_id", created.ProductID),
		observability.F("reserved_stock", created.ReservedStock),
	)
	return created, nil
}

// SetActive toggles the subscription and moves its reservation with it. A
// call that does not change the flag writes nothing and triggers no
// recompute.
func (s *Service) SetActive(ctx context.Context, subID string, active bool) (*subscription.Subscription, error) {
	now := s.clock.Now()
	var (
		updated *subscription.Subscription
		changed bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		sub, err := tx.Subscriptions().Get(ctx, subID)
		if err != nil {
			return err
		}
		if !sub.SetActive(active, now) {
			updated = sub
			return nil
		}
		changed = true
		p, err := tx.Products().GetForUpdate(ctx, sub.ProductID)
		if err != nil {
			return err
		}
		if err := tx.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, p, now); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if active {
			s.publish(ctx, subscription.ReservedEvent{
				SubscriptionID: updated.ID,
				ProductID:      updated.ProductID,
				ReservedStock:  updated.ReservedStock,
				OccurredAt:     now,
			})
		} else {
			s.publish(ctx, subscription.ReleasedEvent{
				SubscriptionID: updated.ID,
				ProductID:      updated.ProductID,
				OccurredAt:     now,
			})
		}
	}
	return updated, nil
}

// ChangeQuantity adjusts the per-delivery quantity. While active, growth is
// validated against available headroom before anything is written.
func (s *Service) ChangeQuantity(ctx context.Context, subID string, quantity int) (*subscription.Subscription, error) {
	if quantity <= 0 {
		return nil, subscription.ErrInvalidQuantity
	}
	now := s.clock.Now()
	var updated *subscription.Subscription
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		sub, err := tx.Subscriptions().Get(ctx, subID)
		if err != nil {
			return err
		}
		if !sub.Active {
			if err := sub.SetQuantity(quantity, now); err != nil {
				return err
			}
			updated = sub
			return tx.Subscriptions().Update(ctx, sub)
		}
		p, err := tx.Products().GetForUpdate(ctx, sub.ProductID)
		if err != nil {
			return err
		}
		delta := subscription.ReservedUnits(quantity, true) - sub.ReservedStock
		if delta > 0 && p.Available() < delta {
			return fmt.Errorf("%w: need %d more units for the delivery horizon, %d available",
				product.ErrInsufficientStock, delta, p.Available())
		}
		if err := sub.SetQuantity(quantity, now); err != nil {
			return err
		}
		if err := tx.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, p, now); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete deactivates first and removes second, inside one unit of work, so
// the reservation is provably released before the record disappears.
func (s *Service) Delete(ctx context.Context, subID string) error {
	now := s.clock.Now()
	var released *subscription.Subscription
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		sub, err := tx.Subscriptions().Get(ctx, subID)
		if err != nil {
			return err
		}
		p, err := tx.Products().GetForUpdate(ctx, sub.ProductID)
		if err != nil {
			return err
		}
		if sub.SetActive(false, now) {
			if err := tx.Subscriptions().Update(ctx, sub); err != nil {
				return err
			}
		}
		if err := tx.Subscriptions().Delete(ctx, sub.ID); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, p, now); err != nil {
			return err
		}
		released = sub
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, subscription.ReleasedEvent{
		SubscriptionID: released.ID,
		ProductID:      released.ProductID,
		OccurredAt:     now,
	})
	return nil
}

// Get returns one subscription.
func (s *Service) Get(ctx context.Context, subID string) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		sub, err = tx.Subscriptions().Get(ctx, subID)
		return err
	})
	return sub, err
}

// ListByUser returns the user's subscriptions.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		subs, err = tx.Subscriptions().ListByUser(ctx, userID)
		return err
	})
	return subs, err
}

// UpcomingDeliveries projects the subscription's next delivery dates.
func (s *Service) UpcomingDeliveries(ctx context.Context, subID string, count int) ([]time.Time, error) {
	sub, err := s.Get(ctx, subID)
	if err != nil {
		return nil, err
	}
	return subscription.DeliveryDates(sub.NextDelivery, sub.Frequency, count), nil
}

// Reconcile recomputes every product's reserved total from the live set of
// active subscriptions. Run at startup or on demand to heal drift left by a
// crash mid-operation; each product gets its own short unit of work.
func (s *Service) Reconcile(ctx context.Context) error {
	var ids []string
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		products, err := tx.Products().List(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	var errs []error
	for _, id := range ids {
		err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			p, err := tx.Products().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			return s.recompute(ctx, tx, p, now)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile product %s: %w", id, err))
		}
	}
	s.reconciles.Add(1)
	logctx.FromOr(ctx, s.log).Info("reconcile_done",
		observability.F("products", len(ids)),
		observability.F("failures", len(errs)),
	)
	return errors.Join(errs...)
}

// recompute derives the product's reserved total from its active
// subscriptions and persists it. The caller must hold the product lock.
func (s *Service) recompute(ctx context.Context, tx storage.Tx, p *product.Product, now time.Time) error {
	subs, err := tx.Subscriptions().ListActiveByProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	total := 0
	for _, sub := range subs {
		total += sub.ReservedStock
	}
	p.Reserve(total, now)
	if err := tx.Products().Update(ctx, p); err != nil {
		return err
	}
	s.recomputes.Add(1)
	return nil
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
