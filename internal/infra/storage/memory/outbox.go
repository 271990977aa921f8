package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "stayhub/internal/app/outbox"
	infraoutbox "stayhub/internal/infra/outbox"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	attempts  int
	nextAt    time.Time
	claimed   bool
	sent      bool
	lastError string
}

// Outbox keeps event records in memory and serves them to the relay worker.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// Add records outside any unit of work; units buffer their records until commit.
func (o *Outbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	o.addAll([]appoutbox.EventRecord{record})
	return nil
}

func (o *Outbox) addAll(records []appoutbox.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range records {
		o.entries = append(o.entries, &outboxEntry{record: r})
	}
}

func (o *Outbox) Claim(_ context.Context, _ string) (*infraoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for _, e := range o.entries {
		if e.sent || e.claimed || e.nextAt.After(now) {
			continue
		}
		e.claimed = true
		r := e.record
		return &infraoutbox.Message{
			ID:         r.ID,
			Name:       r.Name,
			Payload:    r.Payload,
			OccurredAt: r.OccurredAt,
			Aggregate:  r.Aggregate,
			Headers:    r.Headers,
			Attempts:   e.attempts,
		}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.record.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			e.claimed = false
			e.attempts++
			e.nextAt = next
			e.lastError = errMsg
		}
	}
	return nil
}

// Pending lists the names of records not yet delivered, oldest first.
func (o *Outbox) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record.Name)
	}
	return out
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Store = (*Outbox)(nil)
)
