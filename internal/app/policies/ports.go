package policies

import (
	"context"
	"errors"

	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
)

var (
	ErrPropertyNotFound = errors.New("policies: property not found")
	ErrUserNotFound     = errors.New("policies: user not found")
	ErrLockTimeout      = errors.New("policies: lock not acquired in time")
)

// PropertyLookup exposes the catalogue facts a booking depends on.
type PropertyLookup interface {
	Owner(ctx context.Context, propertyID booking.PropertyID) (booking.UserID, error)
	Capacity(ctx context.Context, propertyID booking.PropertyID) (int, error)
	PricePerNight(ctx context.Context, propertyID booking.PropertyID) (money.Money, error)
}

type UserLookup interface {
	Exists(ctx context.Context, userID booking.UserID) (bool, error)
	Role(ctx context.Context, userID booking.UserID) (booking.Role, error)
}

// Notifier is fire-and-forget: implementations must not block the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, userID booking.UserID, eventType string, payload map[string]any)
}

type PaymentGateway interface {
	Charge(ctx context.Context, bookingID booking.BookingID, amount money.Money, returnURL string) (payment.Handle, error)
	// OnChargeResult is idempotent per payment and outcome.
	OnChargeResult(ctx context.Context, paymentID payment.PaymentID, outcome payment.Outcome, gatewayRef string) (*payment.Payment, error)
	// Refund returns payment.ErrNotRefundable unless the payment is completed. A payment
	// that was already refunded yields the recorded refund.
	Refund(ctx context.Context, paymentID payment.PaymentID, amount *money.Money, reason string) (payment.RefundHandle, error)
	Payment(ctx context.Context, paymentID payment.PaymentID) (*payment.Payment, error)
}

// PropertyLocker serializes check-and-write sequences per property.
type PropertyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
