package subscription

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("subscription: not found")
	ErrInvalidQuantity  = errors.New("subscription: quantity must be greater than zero")
	ErrInvalidFrequency = errors.New("subscription: unknown frequency")
)

// Frequency is the delivery cadence. Offsets are calendar-naive: monthly and
// yearly are fixed 30 and 365 day steps, matching how delivery projection has
// always behaved.
type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case Weekly, Biweekly, Monthly, Yearly:
		return f, nil
	default:
		return "", ErrInvalidFrequency
	}
}

// IntervalDays is the fixed day offset between deliveries.
func (f Frequency) IntervalDays() int {
	switch f {
	case Weekly:
		return 7
	case Biweekly:
		return 14
	case Monthly:
		return 30
	case Yearly:
		return 365
	default:
		return 0
	}
}

// Subscription is a standing re-order of one product for one user. While
// active it holds ReservedStock units of the product out of cart reach.
type Subscription struct {
	ID            string
	UserID        string
	ProductID     string
	Quantity      int
	Frequency     Frequency
	NextDelivery  time.Time
	Active        bool
	ReservedStock int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, userID, productID string, quantity int, freq Frequency, nextDelivery, now time.Time) (*Subscription, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := ParseFrequency(string(freq)); err != nil {
		return nil, err
	}
	return &Subscription{
		ID:            id,
		UserID:        userID,
		ProductID:     productID,
		Quantity:      quantity,
		Frequency:     freq,
		NextDelivery:  nextDelivery,
		Active:        true,
		ReservedStock: ReservedUnits(quantity, true),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// SetActive flips the active flag and recomputes the held units. Returns
// false when the flag already matches, in which case nothing changed and the
// caller should skip the product recompute.
func (s *Subscription) SetActive(active bool, now time.Time) bool {
	if s.Active == active {
		return false
	}
	s.Active = active
	s.ReservedStock = ReservedUnits(s.Quantity, s.Active)
	s.touch(now)
	return true
}

// SetQuantity changes the per-delivery quantity and recomputes the held
// units for the current active state.
func (s *Subscription) SetQuantity(quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	s.Quantity = quantity
	s.ReservedStock = ReservedUnits(s.Quantity, s.Active)
	s.touch(now)
	return nil
}

func (s *Subscription) touch(now time.Time) {
	s.UpdatedAt = now
}

func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
