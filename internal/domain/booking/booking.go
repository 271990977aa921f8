package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/events"
	"stayhub/internal/domain/shared/money"
)

type BookingID string

type PropertyID string

type UserID string

type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusConfirmed       Status = "confirmed"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// Active reports whether a booking in this status still occupies its nights.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusRejected
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "none"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusWaived marks a paid booking cancelled with no refund due under its policy.
	PaymentStatusWaived PaymentStatus = "waived"
)

// Collected reports whether the booking's charge settled at some point, whatever
// happened to the money afterwards.
func (p PaymentStatus) Collected() bool {
	return p == PaymentStatusPaid || p == PaymentStatusRefunded || p == PaymentStatusWaived
}

type Booking struct {
	ID                 BookingID
	PropertyID         PropertyID
	GuestID            UserID
	OwnerID            UserID
	Range              daterange.DateRange
	GuestsCount        int
	TotalPrice         money.Money
	Status             Status
	PaymentStatus      PaymentStatus
	PaymentReference   string
	CancellationReason string
	RefundedAmount     money.Money
	WaivedAmount       money.Money
	Policy             CancellationPolicySnapshot
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ConfirmedAt        *time.Time
	PaidAt             *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	Version            int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Save inserts a booking with Version 0 and otherwise updates it only if the stored
	// version matches, returning ErrConcurrentUpdate on mismatch. Version is bumped on success.
	Save(ctx context.Context, booking *Booking) error
	ActiveByProperty(ctx context.Context, propertyID PropertyID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID UserID) ([]*Booking, error)
	DueForCompletion(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID            BookingID
	PropertyID    PropertyID
	GuestID       UserID
	OwnerID       UserID
	Range         daterange.DateRange
	GuestsCount   int
	Capacity      int
	PricePerNight money.Money
	Policy        CancellationPolicySnapshot
	CreatedAt     time.Time
}

// ValidateStay checks the request-level rules that do not need storage access.
func ValidateStay(dr daterange.DateRange, guests, capacity int, now time.Time) error {
	if err := dr.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDateRange, err.Error())
	}
	if guests <= 0 {
		return ErrInvalidGuests
	}
	if capacity > 0 && guests > capacity {
		return fmt.Errorf("%w: %d > %d", ErrCapacityExceeded, guests, capacity)
	}
	if dr.CheckIn.Before(daterange.Day(now)) {
		return ErrCheckInInPast
	}
	return nil
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.ID == "" {
		return nil, errors.New("booking: id required")
	}
	if params.GuestID == "" || params.PropertyID == "" {
		return nil, errors.New("booking: guest and property required")
	}
	if params.GuestID == params.OwnerID {
		return nil, ErrOwnProperty
	}
	if err := ValidateStay(params.Range, params.GuestsCount, params.Capacity, params.CreatedAt); err != nil {
		return nil, err
	}
	if params.PricePerNight.Amount < 0 {
		return nil, ErrInvalidPrice
	}
	now := params.CreatedAt.UTC()
	total := params.PricePerNight.Multiply(int64(params.Range.Nights()))
	b := &Booking{
		ID:             params.ID,
		PropertyID:     params.PropertyID,
		GuestID:        params.GuestID,
		OwnerID:        params.OwnerID,
		Range:          params.Range,
		GuestsCount:    params.GuestsCount,
		TotalPrice:     total,
		Status:         StatusPending,
		PaymentStatus:  PaymentStatusNone,
		RefundedAmount: money.Money{Currency: total.Currency},
		WaivedAmount:   money.Money{Currency: total.Currency},
		Policy:         params.Policy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.Record(BookingRequested{
		BookingID:   b.ID,
		PropertyID:  b.PropertyID,
		GuestID:     b.GuestID,
		OwnerID:     b.OwnerID,
		Range:       b.Range,
		GuestsCount: b.GuestsCount,
		Total:       b.TotalPrice,
		At:          now,
	})
	return b, nil
}

// Clone returns a copy that shares no mutable state with b.
func (b Booking) Clone() Booking {
	out := b
	out.EventRecorder = b.EventRecorder.Detach()
	out.ConfirmedAt = cloneTime(b.ConfirmedAt)
	out.PaidAt = cloneTime(b.PaidAt)
	out.CancelledAt = cloneTime(b.CancelledAt)
	out.CompletedAt = cloneTime(b.CompletedAt)
	return out
}

// Occupies reports whether the booking blocks other reservations of its property for dr.
func (b Booking) Occupies(dr daterange.DateRange) bool {
	return b.Status.Active() && b.Range.Overlaps(dr)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func stamp(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}
