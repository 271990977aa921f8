package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []Notification
}

func (s *flakySender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker down")
	}
	s.got = append(s.got, n)
	return nil
}

func (s *flakySender) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...)
}

func TestDispatcherRetriesUntilDelivered(t *testing.T) {
	sender := &flakySender{failures: 2}
	d := &Dispatcher{Sender: sender, Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	d.Notify(context.Background(), "guest-1", "booking.confirmed", map[string]any{"booking_id": "b-1"})

	require.Eventually(t, func() bool { return len(sender.delivered()) == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done
	got := sender.delivered()[0]
	assert.Equal(t, "guest-1", got.UserID)
	assert.Equal(t, "booking.confirmed", got.EventType)
	assert.Equal(t, 3, sender.calls)
}

func TestNotifyDropsWhenQueueIsFull(t *testing.T) {
	sender := &flakySender{}
	d := &Dispatcher{Sender: sender, QueueSize: 1}

	d.Notify(context.Background(), "u", "a", nil)
	d.Notify(context.Background(), "u", "b", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Run(ctx)
	got := sender.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].EventType)

	d.Notify(context.Background(), "u", "late", nil)
	assert.Len(t, sender.delivered(), 1)
}

type capturePublisher struct {
	topic, key string
	payload    []byte
}

func (p *capturePublisher) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	p.topic, p.key, p.payload = topic, key, payload
	return nil
}

func TestBrokerSenderKeysByRecipient(t *testing.T) {
	pub := &capturePublisher{}
	s := BrokerSender{Publisher: pub, TopicPrefix: "dev."}

	require.NoError(t, s.Send(context.Background(), Notification{ID: "n-1", UserID: "owner-1", EventType: "booking.requested"}))

	assert.Equal(t, "dev.notifications.v1", pub.topic)
	assert.Equal(t, "owner-1", pub.key)
	var decoded Notification
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "booking.requested", decoded.EventType)
}
