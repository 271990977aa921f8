package booking

import (
	"time"

	"stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/money"
)

type BookingRequested struct {
	BookingID   BookingID           `json:"booking_id"`
	PropertyID  PropertyID          `json:"property_id"`
	GuestID     UserID              `json:"guest_id"`
	OwnerID     UserID              `json:"owner_id"`
	Range       daterange.DateRange `json:"range"`
	GuestsCount int                 `json:"guests_count"`
	Total       money.Money         `json:"total"`
	At          time.Time           `json:"at"`
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingAwaitingPayment struct {
	BookingID BookingID   `json:"booking_id"`
	GuestID   UserID      `json:"guest_id"`
	Total     money.Money `json:"total"`
	At        time.Time   `json:"at"`
}

func (e BookingAwaitingPayment) EventName() string     { return "booking.awaiting_payment" }
func (e BookingAwaitingPayment) AggregateID() string   { return string(e.BookingID) }
func (e BookingAwaitingPayment) OccurredAt() time.Time { return e.At }

type BookingPaymentStarted struct {
	BookingID BookingID `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	At        time.Time `json:"at"`
}

func (e BookingPaymentStarted) EventName() string     { return "booking.payment_started" }
func (e BookingPaymentStarted) AggregateID() string   { return string(e.BookingID) }
func (e BookingPaymentStarted) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID  BookingID           `json:"booking_id"`
	PropertyID PropertyID          `json:"property_id"`
	GuestID    UserID              `json:"guest_id"`
	OwnerID    UserID              `json:"owner_id"`
	PaymentID  string              `json:"payment_id"`
	Range      daterange.DateRange `json:"range"`
	Total      money.Money         `json:"total"`
	At         time.Time           `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID  BookingID   `json:"booking_id"`
	PropertyID PropertyID  `json:"property_id"`
	GuestID    UserID      `json:"guest_id"`
	OwnerID    UserID      `json:"owner_id"`
	Reason     string      `json:"reason,omitempty"`
	RefundID   string      `json:"refund_id,omitempty"`
	Refunded   money.Money `json:"refunded"`
	Waived     money.Money `json:"waived"`
	At         time.Time   `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingRejected struct {
	BookingID  BookingID  `json:"booking_id"`
	PropertyID PropertyID `json:"property_id"`
	GuestID    UserID     `json:"guest_id"`
	Reason     string     `json:"reason,omitempty"`
	At         time.Time  `json:"at"`
}

func (e BookingRejected) EventName() string     { return "booking.rejected" }
func (e BookingRejected) AggregateID() string   { return string(e.BookingID) }
func (e BookingRejected) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID  BookingID  `json:"booking_id"`
	PropertyID PropertyID `json:"property_id"`
	GuestID    UserID     `json:"guest_id"`
	At         time.Time  `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingPaymentFailed struct {
	BookingID BookingID `json:"booking_id"`
	GuestID   UserID    `json:"guest_id"`
	PaymentID string    `json:"payment_id"`
	At        time.Time `json:"at"`
}

func (e BookingPaymentFailed) EventName() string     { return "booking.payment_failed" }
func (e BookingPaymentFailed) AggregateID() string   { return string(e.BookingID) }
func (e BookingPaymentFailed) OccurredAt() time.Time { return e.At }

type BookingLatePaymentRefunded struct {
	BookingID BookingID   `json:"booking_id"`
	PaymentID string      `json:"payment_id"`
	Amount    money.Money `json:"amount"`
	Status    Status      `json:"status"`
	At        time.Time   `json:"at"`
}

func (e BookingLatePaymentRefunded) EventName() string     { return "booking.late_payment_refunded" }
func (e BookingLatePaymentRefunded) AggregateID() string   { return string(e.BookingID) }
func (e BookingLatePaymentRefunded) OccurredAt() time.Time { return e.At }
