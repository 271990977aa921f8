package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/app/commands"
	bookinghandlers "stayhub/internal/app/handlers/booking"
	"stayhub/internal/domain/payment"
	"stayhub/internal/infra/storage/memory"
)

type recordingBus struct {
	fail []error
	got  []bookinghandlers.ApplyChargeResultCommand
}

func (b *recordingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.got = append(b.got, cmd.(bookinghandlers.ApplyChargeResultCommand))
	if len(b.fail) > 0 {
		err := b.fail[0]
		b.fail = b.fail[1:]
		return nil, err
	}
	return nil, nil
}

func message(offset int64, body string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: PaymentResultsTopic, Partition: 0, Offset: offset, Value: []byte(body)}
}

func TestPaymentResultsAreAppliedOnce(t *testing.T) {
	bus := &recordingBus{}
	h := PaymentResultHandler{Bus: bus, Inbox: memory.NewInbox()}
	body := `{"id":"evt-1","data":{"payment_id":"pay-1","outcome":"succeeded","reference":"pi_1"}}`

	require.NoError(t, h.Handle(context.Background(), message(1, body)))
	require.NoError(t, h.Handle(context.Background(), message(2, body)))

	require.Len(t, bus.got, 1)
	assert.Equal(t, "pay-1", bus.got[0].PaymentID)
	assert.Equal(t, "succeeded", bus.got[0].Outcome)
	assert.Equal(t, "pi_1", bus.got[0].GatewayReference)
}

func TestTransientFailureIsRetried(t *testing.T) {
	bus := &recordingBus{fail: []error{payment.ErrGatewayUnavailable}}
	h := PaymentResultHandler{Bus: bus, Inbox: memory.NewInbox()}
	msg := message(7, `{"payment_id":"pay-2","outcome":"failed"}`)

	assert.ErrorIs(t, h.Handle(context.Background(), msg), payment.ErrGatewayUnavailable)
	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Len(t, bus.got, 2)
}

func TestMalformedAndPermanentFailuresAreSkipped(t *testing.T) {
	bus := &recordingBus{fail: []error{payment.ErrNotFound}}
	h := PaymentResultHandler{Bus: bus, Inbox: memory.NewInbox()}

	assert.NoError(t, h.Handle(context.Background(), message(1, `not json`)))
	assert.NoError(t, h.Handle(context.Background(), message(2, `{"payment_id":"p","outcome":"maybe"}`)))
	assert.Empty(t, bus.got)

	assert.NoError(t, h.Handle(context.Background(), message(3, `{"payment_id":"ghost","outcome":"succeeded"}`)))
	assert.Len(t, bus.got, 1)
}

func TestRecordHeadersAreSorted(t *testing.T) {
	hs := recordHeaders(map[string]string{"b": "2", "a": "1"})
	require.Len(t, hs, 2)
	assert.Equal(t, "a", string(hs[0].Key))
	assert.Equal(t, "b", string(hs[1].Key))
}
