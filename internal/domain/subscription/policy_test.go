package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservedUnits(t *testing.T) {
	assert.Equal(t, 6, ReservedUnits(2, true))
	assert.Equal(t, 0, ReservedUnits(2, false))
	assert.Equal(t, 0, ReservedUnits(0, true))
	assert.Equal(t, 0, ReservedUnits(-1, true))
}

func TestDeliveriesFixedOffsets(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	got := DeliveryDates(start, Monthly, 3)
	require.Len(t, got, 3)
	// Projection is date-granular and steps a flat 30 days, calendar months
	// are not consulted.
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), got[1])
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), got[2])

	weekly := DeliveryDates(start, Weekly, 2)
	assert.Equal(t, time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC), weekly[1])

	yearly := DeliveryDates(start, Yearly, 2)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), yearly[1])
}

func TestDeliveriesSequenceIsRestartable(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	seq := Deliveries(start, Biweekly, 4)

	var first, second []time.Time
	for d := range seq {
		first = append(first, d)
	}
	for d := range seq {
		second = append(second, d)
	}
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestDeliveriesEarlyBreak(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	for range Deliveries(start, Weekly, 10) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"weekly", "biweekly", "monthly", "yearly"} {
		f, err := ParseFrequency(valid)
		require.NoError(t, err)
		assert.Equal(t, Frequency(valid), f)
	}
	_, err := ParseFrequency("fortnightly")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestSetActiveRecomputesHeldUnits(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub, err := New("s1", "u1", "p1", 2, Monthly, now.AddDate(0, 0, 30), now)
	require.NoError(t, err)
	assert.Equal(t, 6, sub.ReservedStock)

	assert.True(t, sub.SetActive(false, now))
	assert.Equal(t, 0, sub.ReservedStock)

	// Already inactive: no change reported.
	assert.False(t, sub.SetActive(false, now))

	assert.True(t, sub.SetActive(true, now))
	assert.Equal(t, 6, sub.ReservedStock)
}

func TestSetQuantityRecomputesHeldUnits(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub, err := New("s1", "u1", "p1", 1, Weekly, now, now)
	require.NoError(t, err)

	require.NoError(t, sub.SetQuantity(4, now))
	assert.Equal(t, 12, sub.ReservedStock)

	sub.SetActive(false, now)
	require.NoError(t, sub.SetQuantity(2, now))
	assert.Equal(t, 0, sub.ReservedStock, "inactive subscriptions hold nothing")

	assert.ErrorIs(t, sub.SetQuantity(0, now), ErrInvalidQuantity)
}
