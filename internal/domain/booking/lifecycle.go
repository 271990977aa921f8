package booking

import (
	"time"

	"stayhub/internal/domain/shared/money"
)

type EventKind string

const (
	EventOwnerConfirm     EventKind = "owner_confirm"
	EventOwnerReject      EventKind = "owner_reject"
	EventGuestCancel      EventKind = "guest_cancel"
	EventPaymentStarted   EventKind = "payment_started"
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventCheckOutPassed   EventKind = "check_out_passed"
	EventRefundIssued     EventKind = "refund_issued"
)

// Event is a lifecycle input accepted by Apply. The set is closed.
type Event interface {
	Kind() EventKind
	lifecycleEvent()
}

type OwnerConfirm struct{}

type OwnerReject struct {
	Reason string
}

// GuestCancel cancels the stay. Refund must be set when money was collected.
type GuestCancel struct {
	Reason string
	Refund *RefundReceipt
}

type PaymentStarted struct {
	PaymentID string
}

type PaymentSucceeded struct {
	PaymentID string
}

type PaymentFailed struct {
	PaymentID string
}

type CheckOutPassed struct{}

// RefundIssued records a refund of a payment that no longer belongs to an active charge.
type RefundIssued struct {
	PaymentID string
	Amount    money.Money
}

// RefundReceipt is the proof of a successful gateway refund.
type RefundReceipt struct {
	RefundID string
	Amount   money.Money
	Waived   money.Money
}

func (OwnerConfirm) Kind() EventKind     { return EventOwnerConfirm }
func (OwnerReject) Kind() EventKind      { return EventOwnerReject }
func (GuestCancel) Kind() EventKind      { return EventGuestCancel }
func (PaymentStarted) Kind() EventKind   { return EventPaymentStarted }
func (PaymentSucceeded) Kind() EventKind { return EventPaymentSucceeded }
func (PaymentFailed) Kind() EventKind    { return EventPaymentFailed }
func (CheckOutPassed) Kind() EventKind   { return EventCheckOutPassed }
func (RefundIssued) Kind() EventKind     { return EventRefundIssued }

func (OwnerConfirm) lifecycleEvent()     {}
func (OwnerReject) lifecycleEvent()      {}
func (GuestCancel) lifecycleEvent()      {}
func (PaymentStarted) lifecycleEvent()   {}
func (PaymentSucceeded) lifecycleEvent() {}
func (PaymentFailed) lifecycleEvent()    {}
func (CheckOutPassed) lifecycleEvent()   {}
func (RefundIssued) lifecycleEvent()     {}

// Apply computes the booking that results from ev. It never mutates b: on error the
// input is returned as is, on success a detached copy carries the new state and the
// recorded domain event.
func Apply(b Booking, ev Event, now time.Time) (Booking, error) {
	now = now.UTC()
	next := b.Clone()
	var err error
	switch e := ev.(type) {
	case OwnerConfirm:
		err = next.confirmByOwner(now)
	case OwnerReject:
		err = next.reject(e, now)
	case GuestCancel:
		err = next.cancel(e, now)
	case PaymentStarted:
		err = next.startPayment(e, now)
	case PaymentSucceeded:
		err = next.settle(e, now)
	case PaymentFailed:
		err = next.failPayment(e, now)
	case CheckOutPassed:
		err = next.complete(now)
	case RefundIssued:
		err = next.recordLateRefund(e, now)
	default:
		return b, invalidTransition(b.Status, ev)
	}
	if err != nil {
		return b, err
	}
	next.UpdatedAt = now
	return next, nil
}

func (b *Booking) confirmByOwner(now time.Time) error {
	if b.Status != StatusPending {
		return invalidTransition(b.Status, OwnerConfirm{})
	}
	b.Status = StatusAwaitingPayment
	b.Record(BookingAwaitingPayment{BookingID: b.ID, GuestID: b.GuestID, Total: b.TotalPrice, At: now})
	return nil
}

func (b *Booking) reject(e OwnerReject, now time.Time) error {
	if b.Status != StatusPending {
		return invalidTransition(b.Status, e)
	}
	b.Status = StatusRejected
	b.CancellationReason = e.Reason
	b.CancelledAt = stamp(now)
	b.Record(BookingRejected{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, Reason: e.Reason, At: now})
	return nil
}

func (b *Booking) cancel(e GuestCancel, now time.Time) error {
	switch b.Status {
	case StatusPending, StatusAwaitingPayment, StatusConfirmed:
	default:
		return invalidTransition(b.Status, e)
	}
	if b.PaymentStatus == PaymentStatusPaid {
		if e.Refund == nil {
			return ErrRefundRequired
		}
		if e.Refund.Amount.IsPositive() {
			if e.Refund.RefundID == "" {
				return ErrRefundRequired
			}
			b.PaymentStatus = PaymentStatusRefunded
		} else {
			b.PaymentStatus = PaymentStatusWaived
		}
		b.RefundedAmount = e.Refund.Amount
		b.WaivedAmount = e.Refund.Waived
	}
	b.Status = StatusCancelled
	b.CancellationReason = e.Reason
	b.CancelledAt = stamp(now)
	ev := BookingCancelled{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		OwnerID:    b.OwnerID,
		Reason:     e.Reason,
		Refunded:   b.RefundedAmount,
		Waived:     b.WaivedAmount,
		At:         now,
	}
	if e.Refund != nil {
		ev.RefundID = e.Refund.RefundID
	}
	b.Record(ev)
	return nil
}

// CanStartPayment reports whether a new charge may be initiated for b.
func (b Booking) CanStartPayment() error {
	if b.Status != StatusPending && b.Status != StatusAwaitingPayment {
		return invalidTransition(b.Status, PaymentStarted{})
	}
	if b.PaymentStatus.Collected() {
		return invalidTransition(b.Status, PaymentStarted{})
	}
	return nil
}

func (b *Booking) startPayment(e PaymentStarted, now time.Time) error {
	if err := b.CanStartPayment(); err != nil {
		return err
	}
	if e.PaymentID == "" {
		return invalidTransition(b.Status, e)
	}
	b.PaymentReference = e.PaymentID
	b.PaymentStatus = PaymentStatusPending
	b.Record(BookingPaymentStarted{BookingID: b.ID, PaymentID: e.PaymentID, At: now})
	return nil
}

func (b *Booking) settle(e PaymentSucceeded, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusAwaitingPayment {
		return invalidTransition(b.Status, e)
	}
	if e.PaymentID == "" || (b.PaymentReference != "" && b.PaymentReference != e.PaymentID) {
		return ErrPaymentMismatch
	}
	b.PaymentReference = e.PaymentID
	b.PaymentStatus = PaymentStatusPaid
	b.Status = StatusConfirmed
	b.PaidAt = stamp(now)
	b.ConfirmedAt = stamp(now)
	b.Record(BookingConfirmed{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		OwnerID:    b.OwnerID,
		PaymentID:  e.PaymentID,
		Range:      b.Range,
		Total:      b.TotalPrice,
		At:         now,
	})
	return nil
}

func (b *Booking) failPayment(e PaymentFailed, now time.Time) error {
	if b.Status.Terminal() || b.PaymentStatus.Collected() {
		return invalidTransition(b.Status, e)
	}
	if e.PaymentID == "" || (b.PaymentReference != "" && b.PaymentReference != e.PaymentID) {
		return ErrPaymentMismatch
	}
	b.PaymentReference = e.PaymentID
	b.PaymentStatus = PaymentStatusFailed
	b.Record(BookingPaymentFailed{BookingID: b.ID, GuestID: b.GuestID, PaymentID: e.PaymentID, At: now})
	return nil
}

func (b *Booking) complete(now time.Time) error {
	if b.Status != StatusConfirmed {
		return invalidTransition(b.Status, CheckOutPassed{})
	}
	if now.Before(b.Range.CheckOut) {
		return ErrCheckOutNotReached
	}
	b.Status = StatusCompleted
	b.CompletedAt = stamp(now)
	b.Record(BookingCompleted{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, At: now})
	return nil
}

func (b *Booking) recordLateRefund(e RefundIssued, now time.Time) error {
	if e.PaymentID == "" {
		return invalidTransition(b.Status, e)
	}
	if e.PaymentID == b.PaymentReference && b.PaymentStatus == PaymentStatusPaid {
		return invalidTransition(b.Status, e)
	}
	b.Record(BookingLatePaymentRefunded{BookingID: b.ID, PaymentID: e.PaymentID, Amount: e.Amount, Status: b.Status, At: now})
	return nil
}
