package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newOrder(t *testing.T, initial Status) *Order {
	t.Helper()
	o, err := New("o1", "ORD-20250601-DEADBEEF", "u1",
		[]Item{{ProductID: "p1", Quantity: 2, PriceCents: 499}},
		998, 0, 0, "12 High St", "+441234567890", "card", initial, now)
	require.NoError(t, err)
	return o
}

func TestNewRecordsInitialHistory(t *testing.T) {
	o := newOrder(t, StatusPending)

	assert.Equal(t, StatusPending, o.Status)
	assert.Nil(t, o.DeliveredAt)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusPending, o.History[0].Status)
	assert.Equal(t, "u1", o.History[0].ActorID)
	assert.Equal(t, int64(998), o.TotalCents)
}

func TestNewDeliveredStampsTimestamp(t *testing.T) {
	o := newOrder(t, StatusDelivered)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, now, *o.DeliveredAt)
}

func TestNewRejectsEmptyItems(t *testing.T) {
	_, err := New("o1", "n", "u1", nil, 0, 0, 0, "a", "p", "", StatusPending, now)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestNewRejectsUnknownStatus(t *testing.T) {
	_, err := New("o1", "n", "u1", []Item{{ProductID: "p1", Quantity: 1}},
		0, 0, 0, "a", "p", "", Status("archived"), now)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTransitionAppendsHistory(t *testing.T) {
	o := newOrder(t, StatusPending)
	later := now.Add(time.Hour)

	ch, err := o.Transition(StatusShipped, "left warehouse", "admin1", later)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, StatusShipped, ch.Status)
	assert.Equal(t, "left warehouse", ch.Notes)
	require.Len(t, o.History, 2)
}

func TestTransitionToSameStatusStillAppends(t *testing.T) {
	o := newOrder(t, StatusPending)

	_, err := o.Transition(StatusPending, "re-confirmed", "admin1", now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, o.History, 2)
	assert.Equal(t, StatusPending, o.Status)
}

func TestTransitionDeliveredStampsTimestamp(t *testing.T) {
	o := newOrder(t, StatusShipped)
	later := now.Add(48 * time.Hour)

	_, err := o.Transition(StatusDelivered, "", "admin1", later)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, later, *o.DeliveredAt)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	o := newOrder(t, StatusPending)
	_, err := o.Transition(Status("returned"), "", "admin1", now)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	require.Len(t, o.History, 1)
}

func TestTransitionFromTerminalIsAllowed(t *testing.T) {
	o := newOrder(t, StatusCancelled)
	_, err := o.Transition(StatusPending, "reinstated", "admin1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestCloneIsIndependent(t *testing.T) {
	o := newOrder(t, StatusPending)
	clone := o.Clone()

	_, err := clone.Transition(StatusCancelled, "", "admin1", now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Len(t, o.History, 1)
	assert.Len(t, clone.History, 2)
}
