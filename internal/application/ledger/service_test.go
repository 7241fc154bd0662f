package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/domain/subscription"
	"github.com/pharmaracks/stockledger/internal/infrastructure/memory"
	"github.com/pharmaracks/stockledger/internal/pkg/clock"
	"github.com/pharmaracks/stockledger/internal/storage"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, &seqIDs{}, clock.Fixed(testNow), nil, nil)
	return svc, store
}

func seedProduct(t *testing.T, store *memory.Store, id string, onHand int) {
	t.Helper()
	p, err := product.New(id, "Ibuprofen 200mg", "Acme", 399, onHand,
		testNow.AddDate(1, 0, 0), testNow)
	require.NoError(t, err)
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Products().Create(ctx, p)
	}))
}

func getProduct(t *testing.T, store *memory.Store, id string) *product.Product {
	t.Helper()
	var p *product.Product
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Products().Get(ctx, id)
		return err
	}))
	return p
}

func TestCreateReservesDeliveryHorizon(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)

	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Monthly, NextDelivery: testNow.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, sub.ReservedStock)

	p := getProduct(t, store, "p1")
	assert.Equal(t, 6, p.Reserved)
	assert.Equal(t, 4, p.Available())
	assert.Equal(t, 10, p.OnHand, "reservation does not consume stock")
}

func TestCreateRejectsInsufficientHeadroom(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 5)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Weekly, NextDelivery: testNow.AddDate(0, 0, 7),
	})
	require.ErrorIs(t, err, product.ErrInsufficientStock)

	p := getProduct(t, store, "p1")
	assert.Equal(t, 0, p.Reserved, "failed create leaves no reservation behind")

	subs, err := svc.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 0, Frequency: subscription.Weekly,
	})
	assert.ErrorIs(t, err, subscription.ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 1, Frequency: "daily",
	})
	assert.ErrorIs(t, err, subscription.ErrInvalidFrequency)
}

func TestSetActiveMovesReservation(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 3,
		Frequency: subscription.Monthly, NextDelivery: testNow.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	require.Equal(t, 9, getProduct(t, store, "p1").Reserved)

	_, err = svc.SetActive(context.Background(), sub.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, getProduct(t, store, "p1").Reserved)

	_, err = svc.SetActive(context.Background(), sub.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 9, getProduct(t, store, "p1").Reserved)
}

func TestSetActiveIsIdempotent(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Weekly, NextDelivery: testNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	got, err := svc.SetActive(context.Background(), sub.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, 6, getProduct(t, store, "p1").Reserved)

	_, err = svc.SetActive(context.Background(), sub.ID, false)
	require.NoError(t, err)
	got, err = svc.SetActive(context.Background(), sub.ID, false)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 0, getProduct(t, store, "p1").Reserved)
}

func TestReactivationClampsToShrunkenStock(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 3,
		Frequency: subscription.Monthly, NextDelivery: testNow.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	_, err = svc.SetActive(context.Background(), sub.ID, false)
	require.NoError(t, err)

	// Stock shrinks while the subscription is paused.
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		if err := p.SetOnHand(5, testNow); err != nil {
			return err
		}
		return tx.Products().Update(ctx, p)
	}))

	// Reactivation never fails; the reserved total is clamped to on-hand.
	got, err := svc.SetActive(context.Background(), sub.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 9, got.ReservedStock, "the subscription still asks for its full horizon")

	p := getProduct(t, store, "p1")
	assert.Equal(t, 5, p.Reserved)
	assert.Equal(t, 0, p.Available())
}

func TestChangeQuantityValidatesGrowthOnly(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Weekly, NextDelivery: testNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	// reserved 6, available 4

	_, err = svc.ChangeQuantity(context.Background(), sub.ID, 4) // needs 6 more
	require.ErrorIs(t, err, product.ErrInsufficientStock)
	assert.Equal(t, 6, getProduct(t, store, "p1").Reserved)

	got, err := svc.ChangeQuantity(context.Background(), sub.ID, 3) // needs 3 more
	require.NoError(t, err)
	assert.Equal(t, 9, got.ReservedStock)
	assert.Equal(t, 9, getProduct(t, store, "p1").Reserved)

	// Shrinking is always allowed.
	got, err = svc.ChangeQuantity(context.Background(), sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ReservedStock)
	assert.Equal(t, 3, getProduct(t, store, "p1").Reserved)
}

func TestChangeQuantityOnInactiveSkipsStockCheck(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 1,
		Frequency: subscription.Weekly, NextDelivery: testNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	_, err = svc.SetActive(context.Background(), sub.ID, false)
	require.NoError(t, err)

	got, err := svc.ChangeQuantity(context.Background(), sub.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Quantity)
	assert.Equal(t, 0, got.ReservedStock)
	assert.Equal(t, 0, getProduct(t, store, "p1").Reserved)
}

func TestDeleteReleasesReservation(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Monthly, NextDelivery: testNow.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), sub.ID))

	assert.Equal(t, 0, getProduct(t, store, "p1").Reserved)
	_, err = svc.Get(context.Background(), sub.ID)
	assert.ErrorIs(t, err, subscription.ErrNotFound)
}

func TestReservationsAcrossSubscriptionsSum(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 20)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Weekly, NextDelivery: testNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{
		UserID: "u2", ProductID: "p1", Quantity: 3,
		Frequency: subscription.Monthly, NextDelivery: testNow.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	p := getProduct(t, store, "p1")
	assert.Equal(t, 15, p.Reserved)
	assert.Equal(t, 5, p.Available())
}

func TestReconcileHealsDriftedTotal(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	_, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 2,
		Frequency: subscription.Weekly, NextDelivery: testNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	// Corrupt the cached total, simulating drift left by a crash.
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		p.Reserved = 1
		return tx.Products().Update(ctx, p)
	}))
	require.Equal(t, 1, getProduct(t, store, "p1").Reserved)

	require.NoError(t, svc.Reconcile(context.Background()))
	assert.Equal(t, 6, getProduct(t, store, "p1").Reserved)
}

func TestUpcomingDeliveries(t *testing.T) {
	svc, store := newService(t)
	seedProduct(t, store, "p1", 10)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	sub, err := svc.Create(context.Background(), CreateInput{
		UserID: "u1", ProductID: "p1", Quantity: 1,
		Frequency: subscription.Biweekly, NextDelivery: start,
	})
	require.NoError(t, err)

	dates, err := svc.UpcomingDeliveries(context.Background(), sub.ID, 3)
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, start, dates[0])
	assert.Equal(t, start.AddDate(0, 0, 14), dates[1])
	assert.Equal(t, start.AddDate(0, 0, 28), dates[2])
}
