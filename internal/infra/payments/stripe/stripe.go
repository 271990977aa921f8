package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/payment"
)

const (
	Name          = "stripe"
	metadataKey   = "payment_id"
	signatureHead = "Stripe-Signature"
)

// api is the subset of the Stripe client the provider needs.
type api interface {
	NewCheckoutSession(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	NewRefund(params *stripego.RefundParams) (*stripego.Refund, error)
}

type clientAPI struct {
	sc *client.API
}

func (c clientAPI) NewCheckoutSession(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	return c.sc.CheckoutSessions.New(params)
}

func (c clientAPI) NewRefund(params *stripego.RefundParams) (*stripego.Refund, error) {
	return c.sc.Refunds.New(params)
}

// Provider charges cards through Stripe Checkout.
type Provider struct {
	api           api
	webhookSecret string
	cancelURL     string
}

func New(secretKey, webhookSecret, cancelURL string) *Provider {
	return &Provider{
		api:           clientAPI{sc: client.New(secretKey, nil)},
		webhookSecret: webhookSecret,
		cancelURL:     cancelURL,
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResponse, error) {
	cancelURL := p.cancelURL
	if cancelURL == "" {
		cancelURL = req.ReturnURL
	}
	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(req.ReturnURL),
		CancelURL:         stripego.String(cancelURL),
		ClientReferenceID: stripego.String(string(req.BookingID)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			Quantity: stripego.Int64(1),
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(strings.ToLower(req.Amount.Currency)),
				UnitAmount: stripego.Int64(req.Amount.Amount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(req.Description),
				},
			},
		}},
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataKey: string(req.PaymentID)},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataKey, string(req.PaymentID))
	params.SetIdempotencyKey("charge-" + string(req.PaymentID))

	session, err := p.api.NewCheckoutSession(params)
	if err != nil {
		return payments.ChargeResponse{}, mapError(err)
	}
	return payments.ChargeResponse{GatewayReference: session.ID, RedirectURL: session.URL}, nil
}

func (p *Provider) Refund(ctx context.Context, req payments.RefundRequest) (payments.RefundResponse, error) {
	if req.GatewayReference == "" {
		return payments.RefundResponse{}, fmt.Errorf("%w: payment intent unknown", payment.ErrNotRefundable)
	}
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(req.GatewayReference),
		Amount:        stripego.Int64(req.Amount.Amount),
		Reason:        stripego.String(string(stripego.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.AddMetadata(metadataKey, string(req.PaymentID))
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	refund, err := p.api.NewRefund(params)
	if err != nil {
		return payments.RefundResponse{}, mapError(err)
	}
	return payments.RefundResponse{GatewayReference: refund.ID}, nil
}

// ParseWebhook verifies the signature and maps Checkout session events to charge results.
// The gateway reference becomes the payment intent so that refunds can address it.
func (p *Provider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (payment.ChargeResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get(signatureHead), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return payment.ChargeResult{}, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	var outcome payment.Outcome
	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = payment.OutcomeSucceeded
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		outcome = payment.OutcomeFailed
	default:
		return payment.ChargeResult{}, payments.ErrIgnoredEvent
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return payment.ChargeResult{}, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	if string(event.Type) == "checkout.session.completed" && session.PaymentStatus != stripego.CheckoutSessionPaymentStatusPaid {
		// delayed methods settle later through async_payment_* events
		return payment.ChargeResult{}, payments.ErrIgnoredEvent
	}
	id := session.Metadata[metadataKey]
	if id == "" {
		return payment.ChargeResult{}, fmt.Errorf("%w: session %s has no payment id", payment.ErrInvalidWebhook, session.ID)
	}
	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}
	return payment.ChargeResult{PaymentID: payment.PaymentID(id), Outcome: outcome, GatewayReference: ref}, nil
}

func mapError(err error) error {
	var se *stripego.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	switch {
	case se.Code == stripego.ErrorCodeAmountTooSmall || se.Code == stripego.ErrorCodeAmountTooLarge:
		return fmt.Errorf("%w: %s", payment.ErrInvalidAmount, se.Msg)
	case se.Code == stripego.ErrorCodeChargeAlreadyRefunded:
		return fmt.Errorf("%w: %s", payment.ErrNotRefundable, se.Msg)
	case se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", payment.ErrGatewayUnavailable, se.Msg)
	default:
		return fmt.Errorf("stripe: %s (%s): %w", se.Msg, se.Code, payment.ErrGatewayUnavailable)
	}
}

var _ payments.Provider = (*Provider)(nil)
