package subscription

import (
	"iter"
	"time"

	"github.com/pharmaracks/stockledger/internal/pkg/clock"
)

// DeliveryHorizon is the number of upcoming deliveries stock is held
// against while a subscription is active.
const DeliveryHorizon = 3

// ReservedUnits maps a subscription's quantity and active state to the
// units held on its behalf. Inactive subscriptions hold nothing.
func ReservedUnits(quantity int, active bool) int {
	if !active || quantity <= 0 {
		return 0
	}
	return quantity * DeliveryHorizon
}

// Deliveries projects count delivery dates starting at start, stepping by
// the frequency's fixed offset. The sequence is finite and may be ranged
// over more than once.
func Deliveries(start time.Time, freq Frequency, count int) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		current := clock.Date(start)
		step := freq.IntervalDays()
		for i := 0; i < count; i++ {
			if !yield(current) {
				return
			}
			current = current.AddDate(0, 0, step)
		}
	}
}

// DeliveryDates collects Deliveries into a slice for callers that want the
// whole projection at once.
func DeliveryDates(start time.Time, freq Frequency, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	for d := range Deliveries(start, freq, count) {
		dates = append(dates, d)
	}
	return dates
}
