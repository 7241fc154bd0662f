// Package worker turns sweep events into rows of the inventory alert log.
package worker

import (
	"context"
	"fmt"

	"github.com/pharmaracks/stockledger/internal/domain/event"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/observability"
	"github.com/pharmaracks/stockledger/internal/observability/logctx"
	"github.com/pharmaracks/stockledger/internal/storage"
)

type IDGenerator interface {
	NewID() string
}

type Worker struct {
	subscriber event.Subscriber
	store      storage.Store
	ids        IDGenerator
	log        observability.Logger
}

func New(subscriber event.Subscriber, store storage.Store, ids IDGenerator, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		store:      store,
		ids:        ids,
		log:        tel.Logger().With(observability.F("component", "alert_worker")),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(product.LowStockDetectedEvent{}.EventName(), w.handleLowStock)
	w.subscriber.Subscribe(product.ExpiryApproachingEvent{}.EventName(), w.handleExpiry)
}

func (w *Worker) handleLowStock(ctx context.Context, e event.Event) error {
	evt, ok := e.(product.LowStockDetectedEvent)
	if !ok {
		return nil
	}
	alert := &product.InventoryAlert{
		ID:        w.ids.NewID(),
		ProductID: evt.ProductID,
		Type:      product.AlertLowStock,
		Message:   fmt.Sprintf("stock at %d, threshold %d", evt.OnHand, evt.Threshold),
		CreatedAt: evt.OccurredAt,
	}
	if err := w.append(ctx, alert); err != nil {
		logctx.FromOr(ctx, w.log).Warn("alert_append_failed",
			observability.F("product_id", evt.ProductID),
			observability.F("error", err.Error()),
		)
		return err
	}
	logctx.FromOr(ctx, w.log).Info("low_stock_alert_recorded",
		observability.F("product_id", evt.ProductID),
		observability.F("on_hand", evt.OnHand),
	)
	return nil
}

func (w *Worker) handleExpiry(ctx context.Context, e event.Event) error {
	evt, ok := e.(product.ExpiryApproachingEvent)
	if !ok {
		return nil
	}
	alert := &product.InventoryAlert{
		ID:        w.ids.NewID(),
		ProductID: evt.ProductID,
		Type:      product.AlertExpiry,
		Message:   fmt.Sprintf("expires in %d days (%s)", evt.Days, evt.ExpiryDate.Format("2006-01-02")),
		CreatedAt: evt.OccurredAt,
	}
	if err := w.append(ctx, alert); err != nil {
		logctx.FromOr(ctx, w.log).Warn("alert_append_failed",
			observability.F("product_id", evt.ProductID),
			observability.F("error", err.Error()),
		)
		return err
	}
	logctx.FromOr(ctx, w.log).Info("expiry_alert_recorded",
		observability.F("product_id", evt.ProductID),
		observability.F("days", evt.Days),
	)
	return nil
}

func (w *Worker) append(ctx context.Context, a *product.InventoryAlert) error {
	return w.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Alerts().Append(ctx, a)
	})
}
