package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
)

const (
	Name           = "yookassa"
	DefaultBaseURL = "https://api.yookassa.ru/v3"
	metadataKey    = "payment_id"
)

// Provider talks to the YooKassa REST API with basic auth and Idempotence-Key headers.
type Provider struct {
	BaseURL    string
	ShopID     string
	SecretKey  string
	HTTPClient *http.Client
	// VerifyWebhooks re-reads the payment from the API instead of trusting the notification body.
	VerifyWebhooks bool
}

func New(baseURL, shopID, secretKey string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ShopID:         shopID,
		SecretKey:      secretKey,
		HTTPClient:     &http.Client{Timeout: 15 * time.Second},
		VerifyWebhooks: true,
	}
}

func (p *Provider) Name() string { return Name }

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type paymentObject struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       amount            `json:"amount"`
	Confirmation *confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

type createRefundRequest struct {
	PaymentID   string `json:"payment_id"`
	Amount      amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type refundObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type notification struct {
	Type   string        `json:"type"`
	Event  string        `json:"event"`
	Object paymentObject `json:"object"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter"`
}

func (p *Provider) CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResponse, error) {
	body := createPaymentRequest{
		Amount:       toAmount(req.Amount),
		Capture:      true,
		Confirmation: confirmation{Type: "redirect", ReturnURL: req.ReturnURL},
		Description:  req.Description,
		Metadata:     map[string]string{metadataKey: string(req.PaymentID), "booking_id": string(req.BookingID)},
	}
	var out paymentObject
	if err := p.do(ctx, http.MethodPost, "/payments", "charge-"+string(req.PaymentID), body, &out); err != nil {
		return payments.ChargeResponse{}, err
	}
	resp := payments.ChargeResponse{GatewayReference: out.ID}
	if out.Confirmation != nil {
		resp.RedirectURL = out.Confirmation.ConfirmationURL
	}
	return resp, nil
}

func (p *Provider) Refund(ctx context.Context, req payments.RefundRequest) (payments.RefundResponse, error) {
	if req.GatewayReference == "" {
		return payments.RefundResponse{}, fmt.Errorf("%w: gateway payment unknown", payment.ErrNotRefundable)
	}
	body := createRefundRequest{PaymentID: req.GatewayReference, Amount: toAmount(req.Amount), Description: req.Reason}
	var out refundObject
	if err := p.do(ctx, http.MethodPost, "/refunds", req.IdempotencyKey, body, &out); err != nil {
		return payments.RefundResponse{}, err
	}
	if out.Status == "canceled" {
		return payments.RefundResponse{}, fmt.Errorf("%w: refund %s canceled", payment.ErrNotRefundable, out.ID)
	}
	return payments.RefundResponse{GatewayReference: out.ID}, nil
}

func (p *Provider) ParseWebhook(ctx context.Context, payload []byte, _ http.Header) (payment.ChargeResult, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return payment.ChargeResult{}, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	if n.Type != "notification" || n.Object.ID == "" {
		return payment.ChargeResult{}, payment.ErrInvalidWebhook
	}
	obj := n.Object
	if p.VerifyWebhooks {
		var fresh paymentObject
		if err := p.do(ctx, http.MethodGet, "/payments/"+obj.ID, "", nil, &fresh); err != nil {
			return payment.ChargeResult{}, err
		}
		obj = fresh
	}
	var outcome payment.Outcome
	switch obj.Status {
	case "succeeded":
		outcome = payment.OutcomeSucceeded
	case "canceled":
		outcome = payment.OutcomeFailed
	default:
		return payment.ChargeResult{}, payments.ErrIgnoredEvent
	}
	id := obj.Metadata[metadataKey]
	if id == "" {
		return payment.ChargeResult{}, fmt.Errorf("%w: payment %s has no payment id", payment.ErrInvalidWebhook, obj.ID)
	}
	return payment.ChargeResult{PaymentID: payment.PaymentID(id), Outcome: outcome, GatewayReference: obj.ID}, nil
}

func (p *Provider) do(ctx context.Context, method, path, idempotenceKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.ShopID, p.SecretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}
	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", payment.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode: %v", payment.ErrGatewayUnavailable, err)
	}
	return nil
}

func statusError(status int, data []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(data, &apiErr)
	msg := apiErr.Description
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: yookassa %d: %s", payment.ErrGatewayUnavailable, status, msg)
	case apiErr.Code == "invalid_request" && strings.HasPrefix(apiErr.Parameter, "amount"):
		return fmt.Errorf("%w: %s", payment.ErrInvalidAmount, msg)
	default:
		return errors.Join(payment.ErrGatewayUnavailable, fmt.Errorf("yookassa %d %s: %s", status, apiErr.Code, msg))
	}
}

func toAmount(m money.Money) amount {
	return amount{Value: m.Decimal(), Currency: m.Currency}
}

var _ payments.Provider = (*Provider)(nil)
