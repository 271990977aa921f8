package booking

import (
	"context"

	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/events"
)

// recipients maps a booking event to the parties told about it.
func recipients(ev events.DomainEvent, b domainbooking.Booking) []domainbooking.UserID {
	switch ev.(type) {
	case domainbooking.BookingRequested, domainbooking.BookingCancelled:
		return []domainbooking.UserID{b.OwnerID}
	case domainbooking.BookingConfirmed:
		return []domainbooking.UserID{b.GuestID, b.OwnerID}
	case domainbooking.BookingAwaitingPayment, domainbooking.BookingRejected, domainbooking.BookingCompleted,
		domainbooking.BookingPaymentFailed, domainbooking.BookingLatePaymentRefunded:
		return []domainbooking.UserID{b.GuestID}
	default:
		return nil
	}
}

func (s *Service) notify(ctx context.Context, b domainbooking.Booking) {
	if s.Notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ev := range b.PendingEvents() {
		payload := map[string]any{
			"booking_id":  string(b.ID),
			"property_id": string(b.PropertyID),
			"status":      string(b.Status),
			"check_in":    b.Range.CheckIn,
			"check_out":   b.Range.CheckOut,
		}
		for _, uid := range recipients(ev, b) {
			s.Notifier.Notify(ctx, uid, ev.EventName(), payload)
		}
	}
}
