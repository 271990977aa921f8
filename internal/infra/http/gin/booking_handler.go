package ginserver

import (
	"fmt"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/dto"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	PropertyID string    `json:"property_id" binding:"required"`
	CheckIn    time.Time `json:"check_in" binding:"required"`
	CheckOut   time.Time `json:"check_out" binding:"required"`
	Guests     int       `json:"guests" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type startPaymentRequest struct {
	ReturnURL string `json:"return_url"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %s", errInvalidBody, err.Error()))
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		GuestID:         actorID(c),
		PropertyID:      req.PropertyID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id"), Actor: actorID(c)}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	q := bookingapp.ListGuestBookingsQuery{GuestID: actorID(c)}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), Actor: actorID(c), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	writeBooking(c, result, err)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	cmd := bookingapp.ConfirmBookingCommand{BookingID: c.Param("id"), OwnerID: actorID(c)}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	writeBooking(c, result, err)
}

func (h BookingHandler) Reject(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.RejectBookingCommand{BookingID: c.Param("id"), OwnerID: actorID(c), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.RejectBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	writeBooking(c, result, err)
}

func (h BookingHandler) StartPayment(c *gin.Context) {
	var req startPaymentRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.StartPaymentCommand{
		BookingID:       c.Param("id"),
		GuestID:         actorID(c),
		ReturnURL:       req.ReturnURL,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.StartPaymentCommand, *dto.PaymentSession](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func writeBooking(c *gin.Context, result *dto.Booking, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		handleError(c, fmt.Errorf("%w: %s", errInvalidBody, err.Error()))
		return false
	}
	return true
}

var _ BookingHTTP = BookingHandler{}
