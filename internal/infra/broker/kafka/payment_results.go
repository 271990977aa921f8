package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"stayhub/internal/app/commands"
	bookinghandlers "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/middleware"
	"stayhub/internal/domain/payment"
)

const PaymentResultsTopic = "payments.results.v1"

type Inbox interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// paymentResult accepts both a CloudEvents envelope and a bare result body.
type paymentResult struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`

	PaymentID string `json:"payment_id"`
	Outcome   string `json:"outcome"`
	Reference string `json:"reference"`
}

// PaymentResultHandler applies relayed gateway outcomes. Each message is applied once;
// a failed attempt is forgotten so that redelivery retries it.
type PaymentResultHandler struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (h PaymentResultHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	res, id, err := decodePaymentResult(msg)
	if err != nil {
		h.logger().WarnContext(ctx, "payment result dropped", "offset", msg.Offset, "error", err)
		return nil
	}
	seen, err := h.Inbox.Seen(ctx, id)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	cmd := bookinghandlers.ApplyChargeResultCommand{
		PaymentID:        string(res.PaymentID),
		Outcome:          string(res.Outcome),
		GatewayReference: res.GatewayReference,
	}
	if _, err := commands.Dispatch[bookinghandlers.ApplyChargeResultCommand, any](ctx, h.Bus, cmd); err != nil {
		if permanent(err) {
			h.logger().WarnContext(ctx, "payment result rejected", "message_id", id, "payment_id", res.PaymentID, "error", err)
			return nil
		}
		if forgetErr := h.Inbox.Forget(ctx, id); forgetErr != nil {
			return errors.Join(err, forgetErr)
		}
		return err
	}
	return nil
}

func decodePaymentResult(msg *sarama.ConsumerMessage) (payment.ChargeResult, string, error) {
	var env paymentResult
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return payment.ChargeResult{}, "", fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	body := env
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &body); err != nil {
			return payment.ChargeResult{}, "", fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
		}
	}
	outcome := payment.Outcome(body.Outcome)
	if body.PaymentID == "" || !outcome.Valid() {
		return payment.ChargeResult{}, "", payment.ErrInvalidWebhook
	}
	id := env.ID
	if id == "" {
		id = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	return payment.ChargeResult{
		PaymentID:        payment.PaymentID(body.PaymentID),
		Outcome:          outcome,
		GatewayReference: body.Reference,
	}, id, nil
}

func permanent(err error) bool {
	return errors.Is(err, middleware.ErrValidation) ||
		errors.Is(err, payment.ErrNotFound) ||
		errors.Is(err, payment.ErrNotRefundable) ||
		errors.Is(err, payment.ErrInvalidWebhook)
}

func (h PaymentResultHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
