package events

import "time"

type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects events raised by an aggregate until they are handed to the outbox.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// Detach returns a recorder with its own copy of the pending events.
func (r EventRecorder) Detach() EventRecorder {
	if len(r.pending) == 0 {
		return EventRecorder{}
	}
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return EventRecorder{pending: out}
}
