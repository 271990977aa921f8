package booking

import (
	"context"

	"stayhub/internal/app/dto"
	"stayhub/internal/app/queries"
	bookingsvc "stayhub/internal/app/services/booking"
	domainbooking "stayhub/internal/domain/booking"
)

const (
	getBookingKey        = "booking.get"
	listGuestBookingsKey = "me.bookings.list"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	Actor     string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) ActorID() domainbooking.UserID { return domainbooking.UserID(q.Actor) }

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

func (q ListGuestBookingsQuery) ActorID() domainbooking.UserID { return domainbooking.UserID(q.GuestID) }

type QueryHandlers struct {
	Service *bookingsvc.Service
}

func (h QueryHandlers) Get(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	b, err := h.Service.Get(ctx, domainbooking.BookingID(q.BookingID), q.ActorID())
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

func (h QueryHandlers) ListByGuest(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	items, err := h.Service.ListByGuest(ctx, q.ActorID())
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items), nil
}

func RegisterQueries(reg *queries.Registry, h QueryHandlers) {
	queries.Register(reg, getBookingKey, queries.HandlerFunc[GetBookingQuery, dto.Booking](h.Get))
	queries.Register(reg, listGuestBookingsKey, queries.HandlerFunc[ListGuestBookingsQuery, dto.BookingCollection](h.ListByGuest))
}
