package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/payment"
)

const Name = "sandbox"

// Gateway is an in-process provider for local runs and tests. It accepts every
// charge and lets callers inject failures per operation.
type Gateway struct {
	CheckoutURL string

	mu          sync.Mutex
	failCharge  error
	failRefund  error
	refunds     map[payment.PaymentID]string
	chargeCalls int
	refundCalls int
}

func New(checkoutURL string) *Gateway {
	if checkoutURL == "" {
		checkoutURL = "https://sandbox.local/checkout"
	}
	return &Gateway{CheckoutURL: checkoutURL, refunds: map[payment.PaymentID]string{}}
}

func (g *Gateway) Name() string { return Name }

// FailCharges makes subsequent charges return err; nil restores normal behaviour.
func (g *Gateway) FailCharges(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCharge = err
}

func (g *Gateway) FailRefunds(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failRefund = err
}

func (g *Gateway) Calls() (charges, refunds int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls, g.refundCalls
}

func (g *Gateway) CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResponse, error) {
	g.mu.Lock()
	g.chargeCalls++
	fail := g.failCharge
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return payments.ChargeResponse{}, err
	}
	if fail != nil {
		return payments.ChargeResponse{}, fail
	}
	ref := "sbx_" + uuid.NewString()
	redirect := g.CheckoutURL + "?" + url.Values{"payment_id": {string(req.PaymentID)}, "return_url": {req.ReturnURL}}.Encode()
	return payments.ChargeResponse{GatewayReference: ref, RedirectURL: redirect}, nil
}

func (g *Gateway) Refund(ctx context.Context, req payments.RefundRequest) (payments.RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if err := ctx.Err(); err != nil {
		return payments.RefundResponse{}, err
	}
	if g.failRefund != nil {
		return payments.RefundResponse{}, g.failRefund
	}
	if ref, ok := g.refunds[req.PaymentID]; ok {
		return payments.RefundResponse{GatewayReference: ref}, nil
	}
	ref := "sbx_re_" + uuid.NewString()
	g.refunds[req.PaymentID] = ref
	return payments.RefundResponse{GatewayReference: ref}, nil
}

type webhookBody struct {
	PaymentID string `json:"payment_id"`
	Outcome   string `json:"outcome"`
	Reference string `json:"reference"`
}

func (g *Gateway) ParseWebhook(_ context.Context, payload []byte, _ http.Header) (payment.ChargeResult, error) {
	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return payment.ChargeResult{}, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	outcome := payment.Outcome(body.Outcome)
	if body.PaymentID == "" || !outcome.Valid() {
		return payment.ChargeResult{}, payment.ErrInvalidWebhook
	}
	return payment.ChargeResult{PaymentID: payment.PaymentID(body.PaymentID), Outcome: outcome, GatewayReference: body.Reference}, nil
}

var _ payments.Provider = (*Gateway)(nil)
