package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("order: not found")
	ErrEmptyCart     = errors.New("order: cart is empty")
	ErrInvalidStatus = errors.New("order: unknown status")
	ErrValidation    = errors.New("order: invalid input")
)

// Order is immutable once created except for status and delivery timestamp.
// Amounts are fixed at creation and never recomputed from items; Items hold
// the price snapshot taken at that instant, so later product price changes
// cannot rewrite history.
type Order struct {
	ID               string
	Number           string
	UserID           string
	Status           Status
	SubtotalCents    int64
	TaxCents         int64
	DeliveryFeeCents int64
	TotalCents       int64
	DeliveryAddress  string
	PhoneNumber      string
	PaymentMethod    string
	DeliveredAt      *time.Time
	Items            []Item
	History          []StatusChange
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Item is the immutable snapshot of one cart line at order time.
type Item struct {
	ProductID  string
	Quantity   int
	PriceCents int64
}

func (i Item) TotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

// StatusChange is one row of the append-only audit trail.
type StatusChange struct {
	Status  Status
	Notes   string
	ActorID string
	At      time.Time
}

// New assembles an order in the given initial status and records that status
// as the first history entry. An initial status of delivered stamps
// DeliveredAt immediately (the payment-bypass checkout mode).
func New(id, number, userID string, items []Item, subtotal, tax, deliveryFee int64,
	address, phone, paymentMethod string, initial Status, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if !initial.Valid() {
		return nil, ErrInvalidStatus
	}
	o := &Order{
		ID:               id,
		Number:           number,
		UserID:           userID,
		Status:           initial,
		SubtotalCents:    subtotal,
		TaxCents:         tax,
		DeliveryFeeCents: deliveryFee,
		TotalCents:       subtotal + tax + deliveryFee,
		DeliveryAddress:  address,
		PhoneNumber:      phone,
		PaymentMethod:    paymentMethod,
		Items:            append([]Item(nil), items...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if initial == StatusDelivered {
		o.DeliveredAt = &now
	}
	o.History = append(o.History, StatusChange{Status: initial, ActorID: userID, At: now})
	return o, nil
}

// Transition moves the order to newStatus and appends the audit entry.
// Re-applying the current status is allowed and still appends; transitions
// are not deduplicated. Entering delivered stamps DeliveredAt.
func (o *Order) Transition(newStatus Status, notes, actorID string, now time.Time) (StatusChange, error) {
	if !newStatus.Valid() {
		return StatusChange{}, ErrInvalidStatus
	}
	o.Status = newStatus
	if newStatus == StatusDelivered {
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now
	change := StatusChange{Status: newStatus, Notes: notes, ActorID: actorID, At: now}
	o.History = append(o.History, change)
	return change, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	clone.History = append([]StatusChange(nil), o.History...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		clone.DeliveredAt = &t
	}
	return &clone
}
