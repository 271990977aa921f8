package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
)

const (
	defaultTimeout = 10 * time.Second
	saveAttempts   = 3
)

// Service owns payment records and fronts the configured provider.
type Service struct {
	Repo     payment.Repository
	Provider Provider
	Receipts ReceiptArchive
	Logger   *slog.Logger
	Timeout  time.Duration
	Now      func() time.Time
	NewID    func() string
}

func (s *Service) Charge(ctx context.Context, bookingID booking.BookingID, amount money.Money, returnURL string) (payment.Handle, error) {
	p, err := payment.New(payment.PaymentID(s.newID()), bookingID, amount, s.Provider.Name(), s.now())
	if err != nil {
		return payment.Handle{}, err
	}
	if err := s.Repo.Save(ctx, p); err != nil {
		return payment.Handle{}, fmt.Errorf("payments: save attempt: %w", err)
	}
	var resp ChargeResponse
	err = s.call(ctx, "payments.charge", p.ID, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = s.Provider.CreateCharge(callCtx, ChargeRequest{
			PaymentID:   p.ID,
			BookingID:   bookingID,
			Amount:      amount,
			ReturnURL:   returnURL,
			Description: "Booking " + string(bookingID),
		})
		return callErr
	})
	if err != nil {
		s.abandon(ctx, p.ID, err)
		return payment.Handle{}, err
	}
	err = s.update(ctx, p.ID, func(cur *payment.Payment) (bool, error) {
		cur.GatewayReference = resp.GatewayReference
		cur.RedirectURL = resp.RedirectURL
		cur.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return payment.Handle{}, err
	}
	s.logger().InfoContext(ctx, "charge initiated", "payment_id", p.ID, "booking_id", bookingID, "provider", s.Provider.Name())
	return payment.Handle{ID: p.ID, RedirectURL: resp.RedirectURL}, nil
}

// OnChargeResult records an outcome once. Repeated calls return the stored payment.
func (s *Service) OnChargeResult(ctx context.Context, paymentID payment.PaymentID, outcome payment.Outcome, gatewayRef string) (*payment.Payment, error) {
	var applied bool
	var out *payment.Payment
	err := s.update(ctx, paymentID, func(cur *payment.Payment) (bool, error) {
		changed, err := cur.ApplyOutcome(outcome, gatewayRef, s.now())
		applied = changed
		out = cur
		return changed, err
	})
	if err != nil {
		return nil, err
	}
	if applied {
		s.logger().InfoContext(ctx, "charge result recorded", "payment_id", paymentID, "outcome", outcome, "status", out.Status)
		if out.Status == payment.StatusCompleted {
			s.archive(ctx, "charges/"+string(out.ID)+".json", out)
		}
	}
	return out, nil
}

func (s *Service) Refund(ctx context.Context, paymentID payment.PaymentID, amount *money.Money, reason string) (payment.RefundHandle, error) {
	p, err := s.Repo.ByID(ctx, paymentID)
	if err != nil {
		return payment.RefundHandle{}, err
	}
	if p.Status == payment.StatusRefunded && p.Refund != nil {
		return refundHandle(p), nil
	}
	if !p.CanRefund() {
		return payment.RefundHandle{}, fmt.Errorf("%w: status %s", payment.ErrNotRefundable, p.Status)
	}
	value, err := p.RefundAmount(amount)
	if err != nil {
		return payment.RefundHandle{}, err
	}
	var resp RefundResponse
	err = s.call(ctx, "payments.refund", p.ID, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = s.Provider.Refund(callCtx, RefundRequest{
			PaymentID:        p.ID,
			GatewayReference: p.GatewayReference,
			Amount:           value,
			Reason:           reason,
			IdempotencyKey:   "refund-" + string(p.ID),
		})
		return callErr
	})
	if err != nil {
		return payment.RefundHandle{}, err
	}
	refund := payment.Refund{
		ID:               s.newID(),
		Amount:           value,
		Reason:           reason,
		GatewayReference: resp.GatewayReference,
		CreatedAt:        s.now(),
	}
	var out *payment.Payment
	err = s.update(ctx, paymentID, func(cur *payment.Payment) (bool, error) {
		out = cur
		if cur.Status == payment.StatusRefunded {
			return false, nil
		}
		return true, cur.MarkRefunded(refund, s.now())
	})
	if err != nil {
		return payment.RefundHandle{}, fmt.Errorf("payments: record refund: %w", err)
	}
	s.logger().InfoContext(ctx, "refund issued", "payment_id", paymentID, "amount", value.String())
	s.archive(ctx, "refunds/"+string(out.ID)+".json", out)
	return refundHandle(out), nil
}

func (s *Service) Payment(ctx context.Context, paymentID payment.PaymentID) (*payment.Payment, error) {
	return s.Repo.ByID(ctx, paymentID)
}

// ParseWebhook normalizes a provider notification addressed to providerName.
func (s *Service) ParseWebhook(ctx context.Context, providerName string, payload []byte, header http.Header) (payment.ChargeResult, error) {
	if providerName != s.Provider.Name() {
		return payment.ChargeResult{}, fmt.Errorf("%w: unknown provider %q", payment.ErrInvalidWebhook, providerName)
	}
	return s.Provider.ParseWebhook(ctx, payload, header)
}

// call runs fn under the gateway timeout. A provider that ignores its context is
// abandoned once the deadline passes.
func (s *Service) call(ctx context.Context, op string, paymentID payment.PaymentID, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("stayhub/payments").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", string(paymentID)), attribute.String("payment.provider", s.Provider.Name()))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s timed out: %w", payment.ErrGatewayUnavailable, op, err)
	}
	if knownGatewayErr(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", payment.ErrGatewayUnavailable, op, err)
}

func knownGatewayErr(err error) bool {
	for _, kind := range []error{
		payment.ErrGatewayUnavailable,
		payment.ErrInvalidAmount,
		payment.ErrNotRefundable,
		payment.ErrInvalidWebhook,
		payment.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func (s *Service) abandon(ctx context.Context, id payment.PaymentID, cause error) {
	err := s.update(ctx, id, func(cur *payment.Payment) (bool, error) {
		if cur.Status != payment.StatusPending {
			return false, nil
		}
		cur.Status = payment.StatusFailed
		cur.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		s.logger().WarnContext(ctx, "failed to mark abandoned charge", "payment_id", id, "error", err)
	}
	s.logger().WarnContext(ctx, "charge not initiated", "payment_id", id, "error", cause)
}

// update reloads and reapplies mutate when a concurrent writer bumped the version.
func (s *Service) update(ctx context.Context, id payment.PaymentID, mutate func(*payment.Payment) (bool, error)) error {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		cur, err := s.Repo.ByID(ctx, id)
		if err != nil {
			return err
		}
		changed, err := mutate(cur)
		if err != nil || !changed {
			return err
		}
		lastErr = s.Repo.Save(ctx, cur)
		if lastErr == nil || !errors.Is(lastErr, payment.ErrConcurrentUpdate) {
			return lastErr
		}
	}
	return lastErr
}

func (s *Service) archive(ctx context.Context, key string, p *payment.Payment) {
	if s.Receipts == nil {
		return
	}
	body, err := json.Marshal(receiptFrom(p))
	if err != nil {
		s.logger().WarnContext(ctx, "receipt encode failed", "payment_id", p.ID, "error", err)
		return
	}
	if err := s.Receipts.Put(ctx, key, body); err != nil {
		s.logger().WarnContext(ctx, "receipt archive failed", "payment_id", p.ID, "key", key, "error", err)
	}
}

func (s *Service) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func refundHandle(p *payment.Payment) payment.RefundHandle {
	return payment.RefundHandle{ID: p.Refund.ID, PaymentID: p.ID, Amount: p.Refund.Amount}
}

type receipt struct {
	PaymentID        string     `json:"payment_id"`
	BookingID        string     `json:"booking_id"`
	Provider         string     `json:"provider"`
	Status           string     `json:"status"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	RefundID         string     `json:"refund_id,omitempty"`
	RefundAmount     string     `json:"refund_amount,omitempty"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
	IssuedAt         time.Time  `json:"issued_at"`
}

func receiptFrom(p *payment.Payment) receipt {
	r := receipt{
		PaymentID:        string(p.ID),
		BookingID:        string(p.BookingID),
		Provider:         p.Provider,
		Status:           string(p.Status),
		Amount:           p.Amount.Decimal(),
		Currency:         p.Amount.Currency,
		GatewayReference: p.GatewayReference,
		SettledAt:        p.SettledAt,
		IssuedAt:         p.UpdatedAt,
	}
	if p.Refund != nil {
		r.RefundID = p.Refund.ID
		r.RefundAmount = p.Refund.Amount.Decimal()
	}
	return r
}
