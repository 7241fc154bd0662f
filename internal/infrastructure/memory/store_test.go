package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaracks/stockledger/internal/domain/cart"
	"github.com/pharmaracks/stockledger/internal/domain/product"
	"github.com/pharmaracks/stockledger/internal/domain/subscription"
	"github.com/pharmaracks/stockledger/internal/storage"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedProduct(t *testing.T, s *Store, id string, onHand int) {
	t.Helper()
	p, err := product.New(id, "Loratadine 10mg", "Acme", 349, onHand,
		testNow.AddDate(1, 0, 0), testNow)
	require.NoError(t, err)
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Products().Create(ctx, p)
	}))
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().GetForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		if err := p.DecrementOnHand(5, testNow); err != nil {
			return err
		}
		if err := tx.Products().Update(ctx, p); err != nil {
			return err
		}
		sub, err := subscription.New("s1", "u1", "p1", 1, subscription.Weekly, testNow, testNow)
		if err != nil {
			return err
		}
		if err := tx.Subscriptions().Create(ctx, sub); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().Get(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Equal(t, 10, p.OnHand)
		_, err = tx.Subscriptions().Get(ctx, "s1")
		assert.ErrorIs(t, err, subscription.ErrNotFound)
		return nil
	}))
}

func TestGetForUpdateSerializesCheckThenAct(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 1)

	// Both racers try to take the last unit; the product lock must make
	// exactly one of them win.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
				p, err := tx.Products().GetForUpdate(ctx, "p1")
				if err != nil {
					return err
				}
				if err := p.DecrementOnHand(1, testNow); err != nil {
					return err
				}
				return tx.Products().Update(ctx, p)
			})
		}()
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if errors.Is(err, product.ErrInsufficientStock) {
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().Get(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Equal(t, 0, p.OnHand)
		return nil
	}))
}

func TestTransactionSeesItsOwnSubscriptionWrites(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		sub, err := subscription.New("s1", "u1", "p1", 2, subscription.Weekly, testNow, testNow)
		if err != nil {
			return err
		}
		if err := tx.Subscriptions().Create(ctx, sub); err != nil {
			return err
		}
		active, err := tx.Subscriptions().ListActiveByProduct(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Len(t, active, 1, "pending create is visible inside the transaction")
		return nil
	}))
}

func TestDeletedSubscriptionInvisibleInTx(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		sub, err := subscription.New("s1", "u1", "p1", 2, subscription.Weekly, testNow, testNow)
		if err != nil {
			return err
		}
		return tx.Subscriptions().Create(ctx, sub)
	}))

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Subscriptions().Delete(ctx, "s1"); err != nil {
			return err
		}
		active, err := tx.Subscriptions().ListActiveByProduct(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Empty(t, active, "pending delete hides the row inside the transaction")
		return nil
	}))

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Subscriptions().Get(ctx, "s1")
		assert.ErrorIs(t, err, subscription.ErrNotFound)
		return nil
	}))
}

func TestRefillUpsertKeepsEarlierSuggestion(t *testing.T) {
	s := NewStore()
	first := &product.RefillSuggestion{
		UserID: "u1", ProductID: "p1",
		SuggestedDate: testNow.AddDate(0, 0, 30), Active: true, CreatedAt: testNow,
	}
	second := &product.RefillSuggestion{
		UserID: "u1", ProductID: "p1",
		SuggestedDate: testNow.AddDate(0, 0, 60), Active: true, CreatedAt: testNow,
	}
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Refills().Upsert(ctx, first)
	}))
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Refills().Upsert(ctx, second)
	}))

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.Refills().ListByUser(ctx, "u1")
		if err != nil {
			return err
		}
		require.Len(t, got, 1)
		assert.Equal(t, first.SuggestedDate, got[0].SuggestedDate)
		return nil
	}))
}

// A second Save for the same user must fully replace the stored item set
// even when the caller built the cart value under a fresh id.
func TestCartSaveForExistingUserReplacesItems(t *testing.T) {
	s := NewStore()
	first := &cart.Cart{
		ID: "c1", UserID: "u1",
		Items:     []cart.Item{{ProductID: "p1", Quantity: 2, AddedAt: testNow, UpdatedAt: testNow}},
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	second := &cart.Cart{
		ID: "c2", UserID: "u1",
		Items:     []cart.Item{{ProductID: "p2", Quantity: 1, AddedAt: testNow, UpdatedAt: testNow}},
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Carts().Save(ctx, first)
	}))
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Carts().Save(ctx, second)
	}))

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.Carts().GetByUser(ctx, "u1")
		if err != nil {
			return err
		}
		require.Len(t, got.Items, 1)
		assert.Equal(t, "p2", got.Items[0].ProductID)
		return nil
	}))
}

func TestWorkingCopyInvisibleUntilCommit(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			p, err := tx.Products().GetForUpdate(ctx, "p1")
			if err != nil {
				return err
			}
			if err := p.DecrementOnHand(4, testNow); err != nil {
				return err
			}
			if err := tx.Products().Update(ctx, p); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	// A plain read from another goroutine still sees the committed state.
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().Get(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Equal(t, 10, p.OnHand)
		return nil
	}))
	close(release)
	<-done

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.Products().Get(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Equal(t, 6, p.OnHand)
		return nil
	}))
}
