package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaracks/stockledger/internal/domain/event"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	var mu sync.Mutex
	got := 0
	done := make(chan struct{}, 2)
	handler := func(ctx context.Context, e event.Event) error {
		mu.Lock()
		got++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	b.Subscribe("stock.checked", handler)
	b.Subscribe("stock.checked", handler)

	require.NoError(t, b.Publish(context.Background(), testEvent{name: "stock.checked"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not run")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, got)
}

func TestUnsubscribedEventIsDropped(t *testing.T) {
	b := New(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	require.NoError(t, b.Publish(context.Background(), testEvent{name: "nobody.cares"}))
}

func TestHandlerPanicDoesNotKillBus(t *testing.T) {
	b := New(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	done := make(chan struct{})
	b.Subscribe("boom", func(ctx context.Context, e event.Event) error {
		panic("handler exploded")
	})
	b.Subscribe("after", func(ctx context.Context, e event.Event) error {
		close(done)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), testEvent{name: "boom"}))
	require.NoError(t, b.Publish(context.Background(), testEvent{name: "after"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bus stopped dispatching after a handler panic")
	}
}

func TestPublishAfterStopReturnsErrClosed(t *testing.T) {
	b := New(nil)
	b.Start(context.Background())
	b.Stop(context.Background())

	err := b.Publish(context.Background(), testEvent{name: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStopConcurrentWithPublishDoesNotPanic(t *testing.T) {
	b := New(nil)
	b.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				// Either enqueued or ErrClosed; never a panic.
				_ = b.Publish(context.Background(), testEvent{name: "racy"})
			}
		}()
	}
	b.Stop(context.Background())
	wg.Wait()
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	b := New(nil)

	delivered := make(chan struct{}, 1)
	b.Subscribe("drain.me", func(ctx context.Context, e event.Event) error {
		delivered <- struct{}{}
		return nil
	})

	// Enqueue before the dispatcher starts so the event is still queued
	// when Stop fires.
	require.NoError(t, b.Publish(context.Background(), testEvent{name: "drain.me"}))
	b.Start(context.Background())
	b.Stop(context.Background())

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("queued event was not delivered on shutdown")
	}
}

func TestFanoutCollectsErrors(t *testing.T) {
	ok := publisherFunc(func(context.Context, event.Event) error { return nil })
	bad := publisherFunc(func(context.Context, event.Event) error { return errors.New("broker down") })

	err := Fanout{ok, bad}.Publish(context.Background(), testEvent{name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	assert.NoError(t, Fanout{ok, ok}.Publish(context.Background(), testEvent{name: "x"}))
}

type publisherFunc func(ctx context.Context, e event.Event) error

func (f publisherFunc) Publish(ctx context.Context, e event.Event) error { return f(ctx, e) }
