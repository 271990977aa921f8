package payments_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
	"stayhub/internal/infra/payments/sandbox"
	"stayhub/internal/infra/storage/memory"
)

type archive struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (a *archive) Put(_ context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.items == nil {
		a.items = map[string][]byte{}
	}
	a.items[key] = body
	return nil
}

func newService() (*payments.Service, *sandbox.Gateway, *archive) {
	gw := sandbox.New("")
	arc := &archive{}
	return &payments.Service{Repo: memory.NewPaymentRepository(), Provider: gw, Receipts: arc}, gw, arc
}

func TestChargeSettleAndRefund(t *testing.T) {
	ctx := context.Background()
	svc, gw, arc := newService()

	h, err := svc.Charge(ctx, "b-1", money.Must(30000, "USD"), "https://app.local/return")
	require.NoError(t, err)
	assert.Contains(t, h.RedirectURL, string(h.ID))

	p, err := svc.OnChargeResult(ctx, h.ID, payment.OutcomeSucceeded, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, "pi_1", p.GatewayReference)

	again, err := svc.OnChargeResult(ctx, h.ID, payment.OutcomeSucceeded, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, p.Version, again.Version)

	_, err = svc.OnChargeResult(ctx, h.ID, payment.OutcomeFailed, "")
	assert.ErrorIs(t, err, payment.ErrOutcomeConflict)

	partial := money.Must(10000, "USD")
	refund, err := svc.Refund(ctx, h.ID, &partial, "guest cancelled")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), refund.Amount.Amount)

	replay, err := svc.Refund(ctx, h.ID, nil, "guest cancelled")
	require.NoError(t, err)
	assert.Equal(t, refund.ID, replay.ID)
	_, refunds := gw.Calls()
	assert.Equal(t, 1, refunds)

	require.Contains(t, arc.items, "charges/"+string(h.ID)+".json")
	require.Contains(t, arc.items, "refunds/"+string(h.ID)+".json")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(arc.items["refunds/"+string(h.ID)+".json"], &rec))
	assert.Equal(t, "refunded", rec["status"])
}

func TestRefundRequiresCompletedCharge(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()
	h, err := svc.Charge(ctx, "b-1", money.Must(5000, "USD"), "")
	require.NoError(t, err)

	_, err = svc.Refund(ctx, h.ID, nil, "too early")
	assert.ErrorIs(t, err, payment.ErrNotRefundable)

	_, err = svc.Refund(ctx, "missing", nil, "nope")
	assert.ErrorIs(t, err, payment.ErrNotFound)
}

func TestGatewayFailureMarksAttemptFailed(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newService()
	gw.FailCharges(errors.New("connection reset"))

	_, err := svc.Charge(ctx, "b-1", money.Must(5000, "USD"), "")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestRefundErrorKeepsProviderKind(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newService()
	h, err := svc.Charge(ctx, "b-1", money.Must(5000, "USD"), "")
	require.NoError(t, err)
	_, err = svc.OnChargeResult(ctx, h.ID, payment.OutcomeSucceeded, "pi_1")
	require.NoError(t, err)

	gw.FailRefunds(fmt.Errorf("%w: charge already refunded", payment.ErrNotRefundable))
	_, err = svc.Refund(ctx, h.ID, nil, "late payment")
	assert.ErrorIs(t, err, payment.ErrNotRefundable)
	assert.NotErrorIs(t, err, payment.ErrGatewayUnavailable)

	reset := errors.New("connection reset")
	gw.FailRefunds(reset)
	_, err = svc.Refund(ctx, h.ID, nil, "late payment")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, reset)

	p, err := svc.Payment(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
}

func TestFailedAttemptCanStillSucceed(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()
	h, err := svc.Charge(ctx, "b-1", money.Must(5000, "USD"), "")
	require.NoError(t, err)

	p, err := svc.OnChargeResult(ctx, h.ID, payment.OutcomeFailed, "")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, p.Status)

	p, err = svc.OnChargeResult(ctx, h.ID, payment.OutcomeSucceeded, "late")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
}

func TestParseWebhookChecksProvider(t *testing.T) {
	svc, _, _ := newService()
	_, err := svc.ParseWebhook(context.Background(), "stripe", []byte(`{}`), nil)
	assert.ErrorIs(t, err, payment.ErrInvalidWebhook)

	res, err := svc.ParseWebhook(context.Background(), sandbox.Name, []byte(`{"payment_id":"p-1","outcome":"failed"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFailed, res.Outcome)
}
