package dto

import (
	"time"

	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
	"stayhub/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type Booking struct {
	ID                 string     `json:"id"`
	PropertyID         string     `json:"property_id"`
	GuestID            string     `json:"guest_id"`
	OwnerID            string     `json:"owner_id"`
	CheckIn            time.Time  `json:"check_in"`
	CheckOut           time.Time  `json:"check_out"`
	Nights             int        `json:"nights"`
	Guests             int        `json:"guests"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	Total              MoneyDTO   `json:"total"`
	Refunded           *MoneyDTO  `json:"refunded,omitempty"`
	Waived             *MoneyDTO  `json:"waived,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancellationPolicy string     `json:"cancellation_policy,omitempty"`
	FreeCancelUntil    *time.Time `json:"free_cancellation_until,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Version            int64      `json:"version"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

// PaymentSession is what a guest needs to complete a charge on the provider page.
type PaymentSession struct {
	Booking     Booking `json:"booking"`
	PaymentID   string  `json:"payment_id"`
	RedirectURL string  `json:"redirect_url,omitempty"`
}

type Payment struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"booking_id"`
	Status      string     `json:"status"`
	Provider    string     `json:"provider"`
	Amount      MoneyDTO   `json:"amount"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
		Display:  value.String(),
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	out := Booking{
		ID:                 string(b.ID),
		PropertyID:         string(b.PropertyID),
		GuestID:            string(b.GuestID),
		OwnerID:            string(b.OwnerID),
		CheckIn:            b.Range.CheckIn,
		CheckOut:           b.Range.CheckOut,
		Nights:             b.Range.Nights(),
		Guests:             b.GuestsCount,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		PaymentReference:   b.PaymentReference,
		Total:              MapMoney(b.TotalPrice),
		CancellationReason: b.CancellationReason,
		CancellationPolicy: b.Policy.PolicyID,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CompletedAt:        b.CompletedAt,
		Version:            b.Version,
	}
	if !b.Policy.FreeCancellationUntil.IsZero() {
		until := b.Policy.FreeCancellationUntil
		out.FreeCancelUntil = &until
	}
	if b.PaymentStatus == domainbooking.PaymentStatusRefunded || b.PaymentStatus == domainbooking.PaymentStatusWaived {
		refunded, waived := MapMoney(b.RefundedAmount), MapMoney(b.WaivedAmount)
		out.Refunded, out.Waived = &refunded, &waived
	}
	return out
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}

func MapPayment(p *payment.Payment) Payment {
	if p == nil {
		return Payment{}
	}
	return Payment{
		ID:          string(p.ID),
		BookingID:   string(p.BookingID),
		Status:      string(p.Status),
		Provider:    p.Provider,
		Amount:      MapMoney(p.Amount),
		RedirectURL: p.RedirectURL,
		SettledAt:   p.SettledAt,
	}
}
