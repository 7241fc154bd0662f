package clock

import "time"

// Clock supplies the current time. Expiry checks, delivery-date projection,
// and audit timestamps all go through it so tests can pin the calendar.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a clock backed by the wall clock, normalised to UTC.
func System() Clock { return systemClock{} }

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Clock { return fixedClock{t: t.UTC()} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Date truncates t to midnight UTC. Stock expiry is tracked at day
// granularity, so all date comparisons use this form.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
