package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stayhub/internal/app/outbox"
	"stayhub/internal/app/policies"
	"stayhub/internal/app/uow"
	"stayhub/internal/domain/availability"
	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/daterange"
)

const defaultPersistTimeout = 15 * time.Second

// Service orchestrates booking transitions, availability checks and payment
// reconciliation. Every write to a booking happens under its property lock.
type Service struct {
	Units          uow.Factory
	Properties     policies.PropertyLookup
	Users          policies.UserLookup
	Payments       policies.PaymentGateway
	Notifier       policies.Notifier
	Locker         policies.PropertyLocker
	Encoder        outbox.EventEncoder
	Logger         *slog.Logger
	Policy         func(checkIn time.Time) domainbooking.CancellationPolicySnapshot
	Now            func() time.Time
	NewID          func() string
	PersistTimeout time.Duration
}

type CreateParams struct {
	GuestID     domainbooking.UserID
	PropertyID  domainbooking.PropertyID
	CheckIn     time.Time
	CheckOut    time.Time
	GuestsCount int
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*domainbooking.Booking, error) {
	dr, err := daterange.New(p.CheckIn, p.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrInvalidDateRange, err.Error())
	}
	if _, err := s.actor(ctx, p.GuestID); err != nil {
		return nil, err
	}
	owner, err := s.Properties.Owner(ctx, p.PropertyID)
	if err != nil {
		return nil, lookupErr(err)
	}
	capacity, err := s.Properties.Capacity(ctx, p.PropertyID)
	if err != nil {
		return nil, lookupErr(err)
	}
	price, err := s.Properties.PricePerNight(ctx, p.PropertyID)
	if err != nil {
		return nil, lookupErr(err)
	}
	now := s.now()
	if err := domainbooking.ValidateStay(dr, p.GuestsCount, capacity, now); err != nil {
		return nil, err
	}

	var created *domainbooking.Booking
	err = s.withProperty(ctx, p.PropertyID, func(execCtx context.Context, unit uow.UnitOfWork) ([]*domainbooking.Booking, error) {
		free, err := availability.NewIndex(unit.Bookings()).IsAvailable(execCtx, p.PropertyID, dr, "")
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, fmt.Errorf("%w: %s for %s", domainbooking.ErrDatesUnavailable, p.PropertyID, dr)
		}
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:            domainbooking.BookingID(s.newID()),
			PropertyID:    p.PropertyID,
			GuestID:       p.GuestID,
			OwnerID:       owner,
			Range:         dr,
			GuestsCount:   p.GuestsCount,
			Capacity:      capacity,
			PricePerNight: price,
			Policy:        s.policy(dr.CheckIn),
			CreatedAt:     now,
		})
		if err != nil {
			return nil, err
		}
		if err := unit.Bookings().Save(execCtx, b); err != nil {
			return nil, err
		}
		created = b
		return []*domainbooking.Booking{b}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger().InfoContext(ctx, "booking requested", "booking_id", created.ID, "property_id", created.PropertyID, "range", created.Range.String())
	return created, nil
}

// Cancel cancels on behalf of the guest. The owner is routed to rejection, which only
// a pending booking accepts. Collected money is refunded before the status flips; a
// failed refund leaves the booking untouched.
func (s *Service) Cancel(ctx context.Context, id domainbooking.BookingID, actorID domainbooking.UserID, reason string) (*domainbooking.Booking, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(execCtx context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		if actor.ID == cur.OwnerID && actor.ID != cur.GuestID {
			return s.transition(actor, cur, domainbooking.OwnerReject{Reason: reason})
		}
		ev := domainbooking.GuestCancel{Reason: reason}
		if err := domainbooking.Authorize(actor, ev, cur); err != nil {
			return cur, false, err
		}
		if cur.PaymentStatus == domainbooking.PaymentStatusPaid {
			if _, err := domainbooking.Apply(cur, domainbooking.GuestCancel{Refund: &domainbooking.RefundReceipt{}}, s.now()); err != nil {
				return cur, false, err
			}
			receipt, err := s.refundForCancel(execCtx, cur, reason)
			if err != nil {
				return cur, false, err
			}
			ev.Refund = receipt
		}
		return s.transition(actor, cur, ev)
	})
}

func (s *Service) Confirm(ctx context.Context, id domainbooking.BookingID, ownerID domainbooking.UserID) (*domainbooking.Booking, error) {
	actor, err := s.actor(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(_ context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		return s.transition(actor, cur, domainbooking.OwnerConfirm{})
	})
}

func (s *Service) Reject(ctx context.Context, id domainbooking.BookingID, ownerID domainbooking.UserID, reason string) (*domainbooking.Booking, error) {
	actor, err := s.actor(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(_ context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		return s.transition(actor, cur, domainbooking.OwnerReject{Reason: reason})
	})
}

// StartPayment initiates a charge for the booking total and makes it the active charge.
// A failed gateway call leaves the booking as it was.
func (s *Service) StartPayment(ctx context.Context, id domainbooking.BookingID, guestID domainbooking.UserID, returnURL string) (*domainbooking.Booking, payment.Handle, error) {
	actor, err := s.actor(ctx, guestID)
	if err != nil {
		return nil, payment.Handle{}, err
	}
	var handle payment.Handle
	b, err := s.mutate(ctx, id, func(execCtx context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		if err := domainbooking.Authorize(actor, domainbooking.PaymentStarted{}, cur); err != nil {
			return cur, false, err
		}
		if err := cur.CanStartPayment(); err != nil {
			return cur, false, err
		}
		h, err := s.Payments.Charge(execCtx, cur.ID, cur.TotalPrice, returnURL)
		if err != nil {
			return cur, false, err
		}
		handle = h
		return s.transition(actor, cur, domainbooking.PaymentStarted{PaymentID: string(h.ID)})
	})
	if err != nil {
		return nil, payment.Handle{}, err
	}
	return b, handle, nil
}

// ApplyChargeResult records a gateway notification and reconciles the booking it belongs to.
func (s *Service) ApplyChargeResult(ctx context.Context, res payment.ChargeResult) (*domainbooking.Booking, error) {
	p, err := s.Payments.OnChargeResult(ctx, res.PaymentID, res.Outcome, res.GatewayReference)
	if err != nil {
		if errors.Is(err, payment.ErrOutcomeConflict) {
			s.logger().WarnContext(ctx, "conflicting charge result ignored", "payment_id", res.PaymentID, "outcome", res.Outcome)
			return nil, nil
		}
		return nil, err
	}
	if res.Outcome == payment.OutcomeFailed {
		return nil, s.HandlePaymentFailure(ctx, p.ID)
	}
	return s.HandlePaymentSuccess(ctx, p.ID, p.BookingID)
}

// HandlePaymentSuccess is idempotent per (booking, payment). A success that arrives
// after the booking left the payable states never revives it: the late payment is
// refunded and the booking keeps its status.
func (s *Service) HandlePaymentSuccess(ctx context.Context, paymentID payment.PaymentID, bookingID domainbooking.BookingID) (*domainbooking.Booking, error) {
	p, err := s.Payments.OnChargeResult(ctx, paymentID, payment.OutcomeSucceeded, "")
	if err != nil {
		return nil, err
	}
	if p.BookingID != bookingID {
		return nil, fmt.Errorf("%w: payment %s belongs to booking %s", domainbooking.ErrPaymentMismatch, paymentID, p.BookingID)
	}
	pid := string(paymentID)
	return s.mutate(ctx, bookingID, func(execCtx context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		if cur.PaymentReference == pid && cur.PaymentStatus == domainbooking.PaymentStatusPaid {
			return cur, false, nil
		}
		if cur.CanStartPayment() == nil {
			next := cur
			if cur.PaymentReference != pid {
				var err error
				if next, err = domainbooking.Apply(next, domainbooking.PaymentStarted{PaymentID: pid}, s.now()); err != nil {
					return cur, false, err
				}
			}
			return s.transition(domainbooking.SystemActor, next, domainbooking.PaymentSucceeded{PaymentID: pid})
		}
		if p.Status == payment.StatusRefunded {
			return cur, false, nil
		}
		handle, err := s.Payments.Refund(execCtx, paymentID, nil, "booking no longer payable")
		if err != nil {
			return cur, false, fmt.Errorf("%w: late payment %s: %w", domainbooking.ErrRefundFailed, paymentID, err)
		}
		s.logger().WarnContext(ctx, "payment succeeded for inactive booking; refunded",
			"booking_id", cur.ID, "payment_id", paymentID, "status", cur.Status, "active_payment", cur.PaymentReference, "refund_id", handle.ID)
		return s.transition(domainbooking.SystemActor, cur, domainbooking.RefundIssued{PaymentID: pid, Amount: handle.Amount})
	})
}

// HandlePaymentFailure marks the active charge as failed. The booking status never
// changes, so the guest can retry or cancel. Stale and repeated failures are no-ops.
func (s *Service) HandlePaymentFailure(ctx context.Context, paymentID payment.PaymentID) error {
	p, err := s.Payments.OnChargeResult(ctx, paymentID, payment.OutcomeFailed, "")
	if err != nil {
		if errors.Is(err, payment.ErrOutcomeConflict) {
			s.logger().WarnContext(ctx, "failure reported for settled payment ignored", "payment_id", paymentID)
			return nil
		}
		return err
	}
	pid := string(paymentID)
	_, err = s.mutate(ctx, p.BookingID, func(_ context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		if cur.PaymentReference != "" && cur.PaymentReference != pid {
			return cur, false, nil
		}
		if cur.Status.Terminal() || cur.PaymentStatus.Collected() || cur.PaymentStatus == domainbooking.PaymentStatusFailed {
			return cur, false, nil
		}
		return s.transition(domainbooking.SystemActor, cur, domainbooking.PaymentFailed{PaymentID: pid})
	})
	return err
}

// Complete closes a confirmed stay whose check-out date has passed.
func (s *Service) Complete(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return s.mutate(ctx, id, func(_ context.Context, cur domainbooking.Booking) (domainbooking.Booking, bool, error) {
		return s.transition(domainbooking.SystemActor, cur, domainbooking.CheckOutPassed{})
	})
}

// CompleteDue completes up to limit stays whose check-out is not after now.
func (s *Service) CompleteDue(ctx context.Context, limit int) (int, error) {
	var due []*domainbooking.Booking
	err := s.read(ctx, func(execCtx context.Context, unit uow.UnitOfWork) error {
		var err error
		due, err = unit.Bookings().DueForCompletion(execCtx, s.now(), limit)
		return err
	})
	if err != nil {
		return 0, err
	}
	done := 0
	var errs []error
	for _, b := range due {
		if _, err := s.Complete(ctx, b.ID); err != nil {
			s.logger().WarnContext(ctx, "completion failed", "booking_id", b.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (s *Service) Get(ctx context.Context, id domainbooking.BookingID, actorID domainbooking.UserID) (*domainbooking.Booking, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domainbooking.CanView(actor, *b) {
		return nil, domainbooking.ErrUnauthorized
	}
	return b, nil
}

func (s *Service) ListByGuest(ctx context.Context, guestID domainbooking.UserID) ([]*domainbooking.Booking, error) {
	if _, err := s.actor(ctx, guestID); err != nil {
		return nil, err
	}
	var out []*domainbooking.Booking
	err := s.read(ctx, func(execCtx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = unit.Bookings().ListByGuest(execCtx, guestID)
		return err
	})
	return out, err
}

// Busy lists the occupied ranges of a property inside window.
func (s *Service) Busy(ctx context.Context, propertyID domainbooking.PropertyID, window daterange.DateRange) ([]daterange.DateRange, error) {
	if _, err := s.Properties.Owner(ctx, propertyID); err != nil {
		return nil, lookupErr(err)
	}
	var out []daterange.DateRange
	err := s.read(ctx, func(execCtx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = availability.NewIndex(unit.Bookings()).Busy(execCtx, propertyID, window)
		return err
	})
	return out, err
}

func (s *Service) refundForCancel(ctx context.Context, cur domainbooking.Booking, reason string) (*domainbooking.RefundReceipt, error) {
	refund, penalty, err := cur.Policy.CalculateRefund(cur.TotalPrice, s.now(), cur.Range.CheckIn)
	if err != nil {
		return nil, err
	}
	if !refund.IsPositive() {
		s.logger().InfoContext(ctx, "refund waived by cancellation policy", "booking_id", cur.ID, "policy", cur.Policy.PolicyID, "waived", penalty.String())
		return &domainbooking.RefundReceipt{Amount: refund, Waived: penalty}, nil
	}
	handle, err := s.Payments.Refund(ctx, payment.PaymentID(cur.PaymentReference), &refund, reason)
	if err != nil {
		s.logger().WarnContext(ctx, "refund failed; booking kept", "booking_id", cur.ID, "payment_id", cur.PaymentReference, "error", err)
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrRefundFailed, err)
	}
	return &domainbooking.RefundReceipt{RefundID: handle.ID, Amount: handle.Amount, Waived: penalty}, nil
}

func (s *Service) transition(actor domainbooking.Actor, cur domainbooking.Booking, ev domainbooking.Event) (domainbooking.Booking, bool, error) {
	if err := domainbooking.Authorize(actor, ev, cur); err != nil {
		return cur, false, err
	}
	next, err := domainbooking.Apply(cur, ev, s.now())
	if err != nil {
		return cur, false, err
	}
	return next, true, nil
}

func (s *Service) actor(ctx context.Context, id domainbooking.UserID) (domainbooking.Actor, error) {
	if id == "" {
		return domainbooking.Actor{}, domainbooking.ErrUnauthorized
	}
	role, err := s.Users.Role(ctx, id)
	if err != nil {
		if errors.Is(err, policies.ErrUserNotFound) {
			return domainbooking.Actor{}, fmt.Errorf("%w: unknown user %s", domainbooking.ErrUnauthorized, id)
		}
		return domainbooking.Actor{}, err
	}
	return domainbooking.Actor{ID: id, Role: role}, nil
}

func lookupErr(err error) error {
	if errors.Is(err, policies.ErrPropertyNotFound) {
		return fmt.Errorf("%w: %w", domainbooking.ErrNotFound, err)
	}
	return err
}

func (s *Service) policy(checkIn time.Time) domainbooking.CancellationPolicySnapshot {
	if s.Policy != nil {
		return s.Policy(checkIn)
	}
	return domainbooking.FlexiblePolicy(checkIn)
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

func (s *Service) persistTimeout() time.Duration {
	if s.PersistTimeout <= 0 {
		return defaultPersistTimeout
	}
	return s.PersistTimeout
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
