package bus

// EventBus carries platform events from the adapter to the dispatch loop.
type EventBus struct {
	Events chan Event
}

func NewEventBus(bufSize int) *EventBus {
	return &EventBus{
		Events: make(chan Event, bufSize),
	}
}

// Publish enqueues an event without blocking the caller's poll loop when the
// consumer keeps up; a full buffer applies backpressure.
func (b *EventBus) Publish(ev Event) {
	b.Events <- ev
}
