package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stayhub/internal/app/policies"
	"stayhub/internal/domain/booking"
)

var ErrDispatcherClosed = errors.New("notify: dispatcher closed")

// Notification is one message addressed to one user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher queues notifications and delivers them from a fixed worker pool.
// Notify never blocks: when the queue is full the notification is dropped.
type Dispatcher struct {
	Sender      Sender
	Logger      *slog.Logger
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration

	once   sync.Once
	mu     sync.RWMutex
	closed bool
	queue  chan Notification
	wg     sync.WaitGroup
}

func (d *Dispatcher) init() {
	d.once.Do(func() {
		size := d.QueueSize
		if size <= 0 {
			size = 256
		}
		d.queue = make(chan Notification, size)
	})
}

func (d *Dispatcher) Notify(ctx context.Context, userID booking.UserID, eventType string, payload map[string]any) {
	d.init()
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    string(userID),
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger().WarnContext(ctx, "notification dropped", "user_id", n.UserID, "event", eventType, "error", ErrDispatcherClosed)
		return
	}
	select {
	case d.queue <- n:
	default:
		d.logger().WarnContext(ctx, "notification queue full, dropping", "user_id", n.UserID, "event", eventType)
	}
}

// Run starts the workers and blocks until ctx is done and the queue is drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.init()
	workers := d.Workers
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	<-ctx.Done()
	d.mu.Lock()
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff << (i - 1))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.Sender.Send(ctx, n)
		cancel()
		if err == nil {
			return
		}
	}
	d.logger().Error("notification delivery failed",
		"notification_id", n.ID, "user_id", n.UserID, "event", n.EventType, "attempts", attempts, "error", err)
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

var _ policies.Notifier = (*Dispatcher)(nil)
