package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
)

type fakeAPI struct {
	session    *stripego.CheckoutSessionParams
	refund     *stripego.RefundParams
	sessionErr error
}

func (f *fakeAPI) NewCheckoutSession(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	f.session = params
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &stripego.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil
}

func (f *fakeAPI) NewRefund(params *stripego.RefundParams) (*stripego.Refund, error) {
	f.refund = params
	return &stripego.Refund{ID: "re_1"}, nil
}

const secret = "whsec_test"

func sign(t *testing.T, payload []byte) http.Header {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	h := http.Header{}
	h.Set(signatureHead, fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return h
}

func TestCreateCharge(t *testing.T) {
	api := &fakeAPI{}
	p := &Provider{api: api}

	resp, err := p.CreateCharge(context.Background(), payments.ChargeRequest{
		PaymentID:   "pay-1",
		BookingID:   "b-1",
		Amount:      money.Must(45000, "RUB"),
		ReturnURL:   "https://app.test/return",
		Description: "Booking b-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_1", resp.GatewayReference)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", resp.RedirectURL)
	require.Len(t, api.session.LineItems, 1)
	assert.Equal(t, "rub", *api.session.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(45000), *api.session.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "pay-1", api.session.Metadata[metadataKey])
	assert.Equal(t, "charge-pay-1", *api.session.IdempotencyKey)
}

func TestCreateChargeMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "amount too small", err: &stripego.Error{Code: stripego.ErrorCodeAmountTooSmall, HTTPStatusCode: 400}, want: payment.ErrInvalidAmount},
		{name: "rate limited", err: &stripego.Error{HTTPStatusCode: http.StatusTooManyRequests}, want: payment.ErrGatewayUnavailable},
		{name: "server error", err: &stripego.Error{HTTPStatusCode: http.StatusBadGateway}, want: payment.ErrGatewayUnavailable},
		{name: "transport", err: fmt.Errorf("dial tcp: refused"), want: payment.ErrGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Provider{api: &fakeAPI{sessionErr: tt.err}}
			_, err := p.CreateCharge(context.Background(), payments.ChargeRequest{PaymentID: "pay-1", Amount: money.Must(1, "RUB")})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRefundUsesPaymentIntent(t *testing.T) {
	api := &fakeAPI{}
	p := &Provider{api: api}

	resp, err := p.Refund(context.Background(), payments.RefundRequest{
		PaymentID:        "pay-1",
		GatewayReference: "pi_1",
		Amount:           money.Must(1000, "RUB"),
		IdempotencyKey:   "refund-pay-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "re_1", resp.GatewayReference)
	assert.Equal(t, "pi_1", *api.refund.PaymentIntent)
	assert.Equal(t, int64(1000), *api.refund.Amount)

	_, err = p.Refund(context.Background(), payments.RefundRequest{PaymentID: "pay-2"})
	assert.ErrorIs(t, err, payment.ErrNotRefundable)
}

func TestParseWebhook(t *testing.T) {
	p := &Provider{webhookSecret: secret}
	event := func(kind, status string) []byte {
		return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":%q,"payment_intent":"pi_1","metadata":{"payment_id":"pay-1"}}}}`, kind, status))
	}

	tests := []struct {
		name    string
		payload []byte
		want    payment.Outcome
		wantErr error
	}{
		{name: "completed and paid", payload: event("checkout.session.completed", "paid"), want: payment.OutcomeSucceeded},
		{name: "completed but unpaid", payload: event("checkout.session.completed", "unpaid"), wantErr: payments.ErrIgnoredEvent},
		{name: "async failure", payload: event("checkout.session.async_payment_failed", "unpaid"), want: payment.OutcomeFailed},
		{name: "expired", payload: event("checkout.session.expired", "unpaid"), want: payment.OutcomeFailed},
		{name: "unrelated", payload: event("customer.created", ""), wantErr: payments.ErrIgnoredEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.ParseWebhook(context.Background(), tt.payload, sign(t, tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, payment.PaymentID("pay-1"), res.PaymentID)
			assert.Equal(t, "pi_1", res.GatewayReference)
		})
	}

	payload := event("checkout.session.completed", "paid")
	header := sign(t, payload)
	header.Set(signatureHead, "t=1,v1=deadbeef")
	_, err := p.ParseWebhook(context.Background(), payload, header)
	assert.ErrorIs(t, err, payment.ErrInvalidWebhook)
}
