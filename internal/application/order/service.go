// Package order drives the order lifecycle: creation from a cart, status
// transitions with an append-only audit trail, and reorder.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	domcart "github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/event"
	"github.com/pharmaracks/stockledger/internal/domain/identity"
	domorder "github.com/pharmaracks/stockledger/internal/domain/order"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/observability"
	"github.com/pharmaracks/stockledger/internal/observability/logctx"
	"github.com/pharmaracks/stockledger/internal/pkg/clock"
	"github.com/pharmaracks/stockledger/internal/storage"
)

const (
	useCaseCreate     = "order.create"
	useCaseTransition = "order.transition"

	// refillLeadDays is how far out a refill suggestion is dated at checkout.
	refillLeadDays = 30
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store     storage.Store
	ids       IDGenerator
	clock     clock.Clock
	pricing   PricingPolicy
	initial   domorder.Status
	publisher event.Publisher
	tel       observability.Observability

	log      observability.Logger
	requests observability.Counter
	duration observability.Histogram
}

// Option configures the service.
type Option func(*Service)

// WithInitialStatus sets the status new orders are created in. The default
// is pending; the payment-bypass checkout mode uses delivered.
func WithInitialStatus(status domorder.Status) Option {
	return func(s *Service) { s.initial = status }
}

// WithPricing replaces the zero-tax, zero-fee default policy.
func WithPricing(p PricingPolicy) Option {
	return func(s *Service) { s.pricing = p }
}

func NewService(store storage.Store, ids IDGenerator, clk clock.Clock, publisher event.Publisher, tel observability.Observability, opts ...Option) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	s := &Service{
		store:     store,
		ids:       ids,
		clock:     clk,
		pricing:   ZeroPricing(),
		initial:   domorder.StatusPending,
		publisher: publisher,
		tel:       tel,
		log:       tel.Logger().With(observability.F("component", "order_service")),
		requests:  tel.Metrics().Counter(observability.MUsecaseRequests),
		duration:  tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	DeliveryAddress string
	PhoneNumber     string
	PaymentMethod   string
}

// CreateFromCart converts the user's cart into an order. For every item it
// decrements on-hand stock and snapshots the current price; any shortfall
// aborts the whole order. The cart is cleared only after every item
// succeeded, and a refill suggestion is dated thirty days out per product.
func (s *Service) CreateFromCart(ctx context.Context, userID string, in CreateInput) (_ *domorder.Order, err error) {
	ctx, span := s.tel.Tracer().Start(ctx, "UC.CreateOrder",
		attribute.String("use_case", useCaseCreate),
		attribute.String("order.user_id", userID),
	)
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.requests.Add(1,
			observability.L("use_case", useCaseCreate),
			observability.L("outcome", outcome),
		)
		s.duration.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseCreate),
		)
	}()

	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return nil, fmt.Errorf("%w: delivery address is required", domorder.ErrValidation)
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: phone number is required", domorder.ErrValidation)
	}

	now := s.clock.Now()
	var created *domorder.Order
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if errors.Is(err, domcart.ErrNotFound) {
			return domorder.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return domorder.ErrEmptyCart
		}

		// Lock cart products in sorted-ID order so concurrent checkouts
		// acquire locks in the same sequence.
		productIDs := make([]string, 0, len(c.Items))
		for _, it := range c.Items {
			productIDs = append(productIDs, it.ProductID)
		}
		sort.Strings(productIDs)
		products := make(map[string]*product.Product, len(productIDs))
		for _, id := range productIDs {
			p, err := tx.Products().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			products[id] = p
		}

		var subtotal int64
		items := make([]domorder.Item, 0, len(c.Items))
		for _, it := range c.Items {
			p := products[it.ProductID]
			if err := p.DecrementOnHand(it.Quantity, now); err != nil {
				return fmt.Errorf("product %s: %w", p.ID, err)
			}
			subtotal += p.PriceCents * int64(it.Quantity)
			items = append(items, domorder.Item{
				ProductID:  p.ID,
				Quantity:   it.Quantity,
				PriceCents: p.PriceCents,
			})
		}
		tax := s.pricing.TaxCents(subtotal)
		fee := s.pricing.DeliveryFeeCents(subtotal)

		o, err := domorder.New(s.ids.NewID(), s.newOrderNumber(now), userID, items,
			subtotal, tax, fee, in.DeliveryAddress, in.PhoneNumber, in.PaymentMethod, s.initial, now)
		if err != nil {
			return err
		}

		for _, id := range productIDs {
			if err := tx.Products().Update(ctx, products[id]); err != nil {
				return err
			}
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		for _, it := range items {
			suggestion := &product.RefillSuggestion{
				UserID:        userID,
				ProductID:     it.ProductID,
				SuggestedDate: clock.Date(now).AddDate(0, 0, refillLeadDays),
				Active:        true,
				CreatedAt:     now,
			}
			if err := tx.Refills().Upsert(ctx, suggestion); err != nil {
				return err
			}
		}
		c.Clear(now)
		if err := tx.Carts().Save(ctx, c); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", created.ID))
	s.publish(ctx, domorder.NewCreatedEvent(created, now))
	logctx.FromOr(ctx, s.log).Info("order_created",
		observability.F("order_id", created.ID),
		observability.F("order_number", created.Number),
		observability.F("total_cents", created.TotalCents),
		observability.F("status", string(created.Status)),
	)
	return created, nil
}

// Transition moves an order to newStatus, stamping DeliveredAt when the
// target is delivered, and appends the audit entry in the same unit of
// work. Admin capability is required.
func (s *Service) Transition(ctx context.Context, actor identity.Principal, orderID string, newStatus domorder.Status, notes string) (_ *domorder.Order, err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		s.requests.Add(1,
			observability.L("use_case", useCaseTransition),
			observability.L("outcome", outcome),
		)
		s.duration.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseTransition),
		)
	}()

	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, domorder.ErrInvalidStatus
	}

	now := s.clock.Now()
	var (
		updated *domorder.Order
		change  domorder.StatusChange
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		change, err = o.Transition(newStatus, notes, actor.ID, now)
		if err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o, change); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domorder.NewStatusChangedEvent(updated, change))
	logctx.FromOr(ctx, s.log).Info("order_status_changed",
		observability.F("order_id", updated.ID),
		observability.F("status", string(newStatus)),
		observability.F("actor_id", actor.ID),
	)
	return updated, nil
}

// Reorder copies a past order's items back into the user's cart, merging
// quantities for products already there. Products that have since gone
// inactive or expired are skipped silently.
func (s *Service) Reorder(ctx context.Context, userID, orderID string) (*domcart.Cart, error) {
	now := s.clock.Now()
	var result *domcart.Cart
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domorder.ErrNotFound
		}
		c, err := tx.Carts().GetByUser(ctx, userID)
		if errors.Is(err, domcart.ErrNotFound) {
			c = domcart.New(s.ids.NewID(), userID, now)
		} else if err != nil {
			return err
		}
		for _, it := range o.Items {
			p, err := tx.Products().Get(ctx, it.ProductID)
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !p.Sellable(now) {
				continue
			}
			c.SetQuantity(it.ProductID, c.Quantity(it.ProductID)+it.Quantity, now)
		}
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

// Get returns an order visible to the actor: its owner, or any admin.
func (s *Service) Get(ctx context.Context, actor identity.Principal, orderID string) (*domorder.Order, error) {
	var o *domorder.Order
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		o, err = tx.Orders().Get(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.ID && !actor.Admin {
		return nil, domorder.ErrNotFound
	}
	return o, nil
}

// List returns the actor's orders, or every order for admins.
func (s *Service) List(ctx context.Context, actor identity.Principal) ([]*domorder.Order, error) {
	var orders []*domorder.Order
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if actor.Admin {
			orders, err = tx.Orders().List(ctx)
			return err
		}
		orders, err = tx.Orders().ListByUser(ctx, actor.ID)
		return err
	})
	return orders, err
}

func (s *Service) newOrderNumber(now time.Time) string {
	raw := strings.ToUpper(strings.ReplaceAll(s.ids.NewID(), "-", ""))
	if len(raw) > 8 {
		raw = raw[:8]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), raw)
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
