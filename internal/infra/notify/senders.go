package notify

import (
	"context"
	"encoding/json"
	"log/slog"
)

const Topic = "notifications.v1"

type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// BrokerSender publishes notifications keyed by recipient.
type BrokerSender struct {
	Publisher   Publisher
	TopicPrefix string
}

func (s BrokerSender) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.Publisher.Publish(ctx, s.TopicPrefix+Topic, n.UserID, payload, map[string]string{
		"content-type": "application/json",
		"event-type":   n.EventType,
	})
}

type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "user_id", n.UserID, "event", n.EventType, "booking_id", n.Payload["booking_id"])
	return nil
}
