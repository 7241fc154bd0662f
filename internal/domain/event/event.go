package event

import "context"

// Event is any domain event with a name identifier. Events are emitted
// best-effort after a unit of work commits; the ledger never depends on a
// subscriber having run.
type Event interface {
	EventName() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
