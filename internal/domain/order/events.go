package order

import "time"

// CreatedEvent is emitted after an order has been committed, stock
// decremented and cart cleared.
type CreatedEvent struct {
	OrderID    string
	Number     string
	UserID     string
	TotalCents int64
	Status     Status
	OccurredAt time.Time
}

func (CreatedEvent) EventName() string { return "order.created" }

func NewCreatedEvent(o *Order, now time.Time) CreatedEvent {
	return CreatedEvent{
		OrderID:    o.ID,
		Number:     o.Number,
		UserID:     o.UserID,
		TotalCents: o.TotalCents,
		Status:     o.Status,
		OccurredAt: now,
	}
}

// StatusChangedEvent is emitted after a status transition commits.
type StatusChangedEvent struct {
	OrderID    string
	Status     Status
	ActorID    string
	OccurredAt time.Time
}

func (StatusChangedEvent) EventName() string { return "order.status_changed" }

func NewStatusChangedEvent(o *Order, change StatusChange) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:    o.ID,
		Status:     change.Status,
		ActorID:    change.ActorID,
		OccurredAt: change.At,
	}
}
