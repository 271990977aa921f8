package payments

import (
	"context"
	"errors"
	"net/http"

	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
)

// ErrIgnoredEvent marks webhook deliveries that carry nothing to reconcile.
var ErrIgnoredEvent = errors.New("payments: webhook event ignored")

type ChargeRequest struct {
	PaymentID   payment.PaymentID
	BookingID   booking.BookingID
	Amount      money.Money
	ReturnURL   string
	Description string
}

type ChargeResponse struct {
	GatewayReference string
	RedirectURL      string
}

type RefundRequest struct {
	PaymentID        payment.PaymentID
	GatewayReference string
	Amount           money.Money
	Reason           string
	IdempotencyKey   string
}

type RefundResponse struct {
	GatewayReference string
}

// Provider is one external processor. Implementations return payment.ErrGatewayUnavailable
// for transient failures and payment.ErrInvalidAmount for rejected amounts.
type Provider interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (payment.ChargeResult, error)
}

// ReceiptArchive keeps a copy of settled charges and refunds.
type ReceiptArchive interface {
	Put(ctx context.Context, key string, body []byte) error
}
