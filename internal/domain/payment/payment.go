package payment

import (
	"context"
	"errors"
	"time"

	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/money"
)

var (
	ErrNotFound           = errors.New("payment: not found")
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	ErrInvalidAmount      = errors.New("payment: invalid amount")
	ErrNotRefundable      = errors.New("payment: payment not refundable")
	ErrOutcomeConflict    = errors.New("payment: outcome conflicts with recorded result")
	ErrConcurrentUpdate   = errors.New("payment: concurrent update")
	ErrInvalidWebhook     = errors.New("payment: invalid webhook payload")
)

type PaymentID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Valid() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// Payment is one attempt to collect money for a booking.
type Payment struct {
	ID               PaymentID
	BookingID        booking.BookingID
	Amount           money.Money
	Status           Status
	Provider         string
	GatewayReference string
	RedirectURL      string
	Refund           *Refund
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SettledAt        *time.Time
	Version          int64
}

type Refund struct {
	ID               string
	Amount           money.Money
	Reason           string
	GatewayReference string
	CreatedAt        time.Time
}

// Handle is returned to the caller that initiated a charge.
type Handle struct {
	ID          PaymentID
	RedirectURL string
}

type RefundHandle struct {
	ID        string
	PaymentID PaymentID
	Amount    money.Money
}

// ChargeResult is a provider notification normalized for reconciliation.
type ChargeResult struct {
	PaymentID        PaymentID
	Outcome          Outcome
	GatewayReference string
}

type Repository interface {
	ByID(ctx context.Context, id PaymentID) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
	ListByBooking(ctx context.Context, bookingID booking.BookingID) ([]*Payment, error)
}

func New(id PaymentID, bookingID booking.BookingID, amount money.Money, provider string, now time.Time) (*Payment, error) {
	if amount.Amount <= 0 || amount.Currency == "" {
		return nil, ErrInvalidAmount
	}
	now = now.UTC()
	return &Payment{
		ID:        id,
		BookingID: bookingID,
		Amount:    amount,
		Status:    StatusPending,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyOutcome records the gateway verdict. It reports false when the outcome was
// already recorded, so repeated notifications are no-ops. A failure after success
// is a conflict; success after failure is accepted since gateways retry declined
// cards within the same attempt.
func (p *Payment) ApplyOutcome(outcome Outcome, gatewayRef string, now time.Time) (bool, error) {
	if !outcome.Valid() {
		return false, ErrInvalidWebhook
	}
	switch p.Status {
	case StatusPending:
	case StatusFailed:
		if outcome == OutcomeFailed {
			return false, nil
		}
	case StatusCompleted, StatusRefunded:
		if outcome == OutcomeSucceeded {
			return false, nil
		}
		return false, ErrOutcomeConflict
	}
	if gatewayRef != "" {
		p.GatewayReference = gatewayRef
	}
	if outcome == OutcomeSucceeded {
		p.Status = StatusCompleted
		p.SettledAt = stampPtr(now)
	} else {
		p.Status = StatusFailed
	}
	p.UpdatedAt = now.UTC()
	return true, nil
}

func (p *Payment) CanRefund() bool {
	return p.Status == StatusCompleted
}

func (p *Payment) MarkRefunded(r Refund, now time.Time) error {
	if !p.CanRefund() {
		return ErrNotRefundable
	}
	p.Status = StatusRefunded
	p.Refund = &r
	p.UpdatedAt = now.UTC()
	return nil
}

// RefundAmount resolves an optional requested amount against the collected one.
func (p *Payment) RefundAmount(requested *money.Money) (money.Money, error) {
	if requested == nil {
		return p.Amount, nil
	}
	if requested.Currency != p.Amount.Currency || requested.Amount <= 0 || requested.Amount > p.Amount.Amount {
		return money.Money{}, ErrInvalidAmount
	}
	return *requested, nil
}

func stampPtr(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}
