package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/domain/shared/money"
)

func inStatus(t *testing.T, status Status) Booking {
	t.Helper()
	b := *newTestBooking(t)
	b.ClearEvents()
	b.Status = status
	switch status {
	case StatusAwaitingPayment:
		b.PaymentReference = "pay-1"
		b.PaymentStatus = PaymentStatusPending
	case StatusConfirmed, StatusCompleted:
		b.PaymentReference = "pay-1"
		b.PaymentStatus = PaymentStatusPaid
	}
	return b
}

func TestApplyTransitionTable(t *testing.T) {
	receipt := &RefundReceipt{RefundID: "r-1", Amount: money.Must(45000, "RUB"), Waived: money.Must(0, "RUB")}
	afterCheckOut := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		from      Status
		event     Event
		now       time.Time
		want      Status
		wantEvent string
	}{
		{name: "owner confirms pending", from: StatusPending, event: OwnerConfirm{}, want: StatusAwaitingPayment, wantEvent: "booking.awaiting_payment"},
		{name: "owner rejects pending", from: StatusPending, event: OwnerReject{Reason: "maintenance"}, want: StatusRejected, wantEvent: "booking.rejected"},
		{name: "guest cancels pending", from: StatusPending, event: GuestCancel{Reason: "plans changed"}, want: StatusCancelled, wantEvent: "booking.cancelled"},
		{name: "guest cancels awaiting payment", from: StatusAwaitingPayment, event: GuestCancel{}, want: StatusCancelled, wantEvent: "booking.cancelled"},
		{name: "guest cancels confirmed with refund", from: StatusConfirmed, event: GuestCancel{Refund: receipt}, want: StatusCancelled, wantEvent: "booking.cancelled"},
		{name: "payment succeeds on awaiting payment", from: StatusAwaitingPayment, event: PaymentSucceeded{PaymentID: "pay-1"}, want: StatusConfirmed, wantEvent: "booking.confirmed"},
		{name: "payment succeeds on pending", from: StatusPending, event: PaymentSucceeded{PaymentID: "pay-9"}, want: StatusConfirmed, wantEvent: "booking.confirmed"},
		{name: "payment fails on pending", from: StatusPending, event: PaymentFailed{PaymentID: "pay-9"}, want: StatusPending, wantEvent: "booking.payment_failed"},
		{name: "payment fails on awaiting payment", from: StatusAwaitingPayment, event: PaymentFailed{PaymentID: "pay-1"}, want: StatusAwaitingPayment, wantEvent: "booking.payment_failed"},
		{name: "charge started on awaiting payment", from: StatusAwaitingPayment, event: PaymentStarted{PaymentID: "pay-2"}, want: StatusAwaitingPayment, wantEvent: "booking.payment_started"},
		{name: "check-out passed", from: StatusConfirmed, event: CheckOutPassed{}, now: afterCheckOut, want: StatusCompleted, wantEvent: "booking.completed"},
		{name: "late refund on cancelled", from: StatusCancelled, event: RefundIssued{PaymentID: "pay-7"}, want: StatusCancelled, wantEvent: "booking.late_payment_refunded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := inStatus(t, tt.from)
			now := tt.now
			if now.IsZero() {
				now = testNow
			}

			next, err := Apply(b, tt.event, now)

			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Status)
			assert.Equal(t, now, next.UpdatedAt)
			events := next.PendingEvents()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantEvent, events[0].EventName())
			assert.Empty(t, b.PendingEvents())
			assert.Equal(t, tt.from, b.Status)
		})
	}
}

func TestApplyRejectsUnlistedTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusAwaitingPayment, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRejected}
	allowed := map[Status]map[EventKind]bool{
		StatusPending:         {EventOwnerConfirm: true, EventOwnerReject: true, EventGuestCancel: true, EventPaymentStarted: true, EventPaymentSucceeded: true, EventPaymentFailed: true},
		StatusAwaitingPayment: {EventGuestCancel: true, EventPaymentStarted: true, EventPaymentSucceeded: true, EventPaymentFailed: true},
		StatusConfirmed:       {EventGuestCancel: true, EventCheckOutPassed: true},
	}
	events := []Event{
		OwnerConfirm{},
		OwnerReject{},
		GuestCancel{Refund: &RefundReceipt{}},
		PaymentStarted{PaymentID: "pay-1"},
		PaymentSucceeded{PaymentID: "pay-1"},
		PaymentFailed{PaymentID: "pay-1"},
		CheckOutPassed{},
	}
	afterCheckOut := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)

	for _, from := range all {
		for _, ev := range events {
			if allowed[from][ev.Kind()] {
				continue
			}
			t.Run(string(from)+"/"+string(ev.Kind()), func(t *testing.T) {
				b := inStatus(t, from)
				snapshot := b.Clone()

				got, err := Apply(b, ev, afterCheckOut)

				assert.ErrorIs(t, err, ErrInvalidTransition)
				var transitionErr *InvalidTransitionError
				require.ErrorAs(t, err, &transitionErr)
				assert.Equal(t, from, transitionErr.From)
				assert.Equal(t, ev.Kind(), transitionErr.Event)
				assert.Equal(t, snapshot, got)
				assert.Equal(t, snapshot, b)
			})
		}
	}
}

func TestGuestCancelCompletedLeavesBookingUntouched(t *testing.T) {
	b := inStatus(t, StatusCompleted)
	before := b.Clone()

	got, err := Apply(b, GuestCancel{Reason: "too late"}, testNow)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, got)
}

func TestGuestCancelPaidRequiresRefund(t *testing.T) {
	b := inStatus(t, StatusConfirmed)

	_, err := Apply(b, GuestCancel{}, testNow)
	assert.ErrorIs(t, err, ErrRefundRequired)

	receipt := &RefundReceipt{RefundID: "r-1", Amount: money.Must(22500, "RUB"), Waived: money.Must(22500, "RUB")}
	next, err := Apply(b, GuestCancel{Reason: "sick", Refund: receipt}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, next.Status)
	assert.Equal(t, PaymentStatusRefunded, next.PaymentStatus)
	assert.Equal(t, int64(22500), next.RefundedAmount.Amount)
	assert.Equal(t, int64(22500), next.WaivedAmount.Amount)
	require.NotNil(t, next.CancelledAt)
	assert.Equal(t, "sick", next.CancellationReason)
}

func TestGuestCancelPaidWithoutRefundDue(t *testing.T) {
	b := inStatus(t, StatusConfirmed)

	unproven := &RefundReceipt{Amount: money.Must(1000, "RUB"), Waived: money.Must(44000, "RUB")}
	got, err := Apply(b, GuestCancel{Refund: unproven}, testNow)
	assert.ErrorIs(t, err, ErrRefundRequired)
	assert.Equal(t, StatusConfirmed, got.Status)

	waiver := &RefundReceipt{Amount: money.Must(0, "RUB"), Waived: money.Must(45000, "RUB")}
	next, err := Apply(b, GuestCancel{Reason: "no show", Refund: waiver}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, next.Status)
	assert.Equal(t, PaymentStatusWaived, next.PaymentStatus)
	assert.True(t, next.RefundedAmount.IsZero())
	assert.Equal(t, int64(45000), next.WaivedAmount.Amount)

	_, err = Apply(next, PaymentStarted{PaymentID: "pay-2"}, testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPaymentSucceededStampsTimes(t *testing.T) {
	b := inStatus(t, StatusAwaitingPayment)

	next, err := Apply(b, PaymentSucceeded{PaymentID: "pay-1"}, testNow)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, next.PaymentStatus)
	require.NotNil(t, next.PaidAt)
	require.NotNil(t, next.ConfirmedAt)
	assert.Equal(t, testNow, *next.PaidAt)
	assert.Nil(t, b.PaidAt)
}

func TestPaymentEventsRequireMatchingReference(t *testing.T) {
	b := inStatus(t, StatusAwaitingPayment)

	_, err := Apply(b, PaymentSucceeded{PaymentID: "other"}, testNow)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = Apply(b, PaymentFailed{PaymentID: "other"}, testNow)
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestCheckOutPassedBeforeCheckOut(t *testing.T) {
	b := inStatus(t, StatusConfirmed)

	got, err := Apply(b, CheckOutPassed{}, time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC))

	assert.ErrorIs(t, err, ErrCheckOutNotReached)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestRefundIssuedRejectsActiveCharge(t *testing.T) {
	b := inStatus(t, StatusConfirmed)

	_, err := Apply(b, RefundIssued{PaymentID: "pay-1"}, testNow)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAuthorize(t *testing.T) {
	b := inStatus(t, StatusPending)
	guest := Actor{ID: "guest-1", Role: RoleGuest}
	owner := Actor{ID: "owner-1", Role: RoleOwner}
	stranger := Actor{ID: "someone", Role: RoleGuest}
	admin := Actor{ID: "root", Role: RoleAdmin}

	tests := []struct {
		name    string
		actor   Actor
		event   Event
		allowed bool
	}{
		{name: "owner confirms", actor: owner, event: OwnerConfirm{}, allowed: true},
		{name: "guest cannot confirm", actor: guest, event: OwnerConfirm{}},
		{name: "owner rejects", actor: owner, event: OwnerReject{}, allowed: true},
		{name: "guest cancels", actor: guest, event: GuestCancel{}, allowed: true},
		{name: "owner cannot guest-cancel", actor: owner, event: GuestCancel{}},
		{name: "stranger cannot cancel", actor: stranger, event: GuestCancel{}},
		{name: "guest starts payment", actor: guest, event: PaymentStarted{}, allowed: true},
		{name: "guest cannot settle payment", actor: guest, event: PaymentSucceeded{}},
		{name: "system settles payment", actor: SystemActor, event: PaymentSucceeded{}, allowed: true},
		{name: "system completes", actor: SystemActor, event: CheckOutPassed{}, allowed: true},
		{name: "system cannot confirm for owner", actor: SystemActor, event: OwnerConfirm{}},
		{name: "admin acts for owner", actor: admin, event: OwnerReject{}, allowed: true},
		{name: "anonymous", actor: Actor{}, event: GuestCancel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.event, b)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}

	assert.True(t, CanView(guest, b))
	assert.True(t, CanView(owner, b))
	assert.False(t, CanView(stranger, b))
}
