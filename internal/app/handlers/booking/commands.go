package booking

import (
	"context"
	"time"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/dto"
	"stayhub/internal/app/middleware"
	bookingsvc "stayhub/internal/app/services/booking"
	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
)

const (
	createBookingKey     = "booking.create"
	cancelBookingKey     = "booking.cancel"
	confirmBookingKey    = "booking.confirm"
	rejectBookingKey     = "booking.reject"
	startPaymentKey      = "booking.payment.start"
	applyChargeResultKey = "payment.result.apply"
)

type CreateBookingCommand struct {
	GuestID         string    `validate:"required"`
	PropertyID      string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required,gtfield=CheckIn"`
	Guests          int       `validate:"min=1"`
	IdempotencyKeyV string    `validate:"omitempty,max=128"`
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) ActorID() domainbooking.UserID { return domainbooking.UserID(c.GuestID) }

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	Actor     string `validate:"required"`
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) ActorID() domainbooking.UserID { return domainbooking.UserID(c.Actor) }

type ConfirmBookingCommand struct {
	BookingID string `validate:"required"`
	OwnerID   string `validate:"required"`
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) ActorID() domainbooking.UserID { return domainbooking.UserID(c.OwnerID) }

type RejectBookingCommand struct {
	BookingID string `validate:"required"`
	OwnerID   string `validate:"required"`
	Reason    string `validate:"max=500"`
}

func (c RejectBookingCommand) Key() string { return rejectBookingKey }

func (c RejectBookingCommand) ActorID() domainbooking.UserID { return domainbooking.UserID(c.OwnerID) }

type StartPaymentCommand struct {
	BookingID       string `validate:"required"`
	GuestID         string `validate:"required"`
	ReturnURL       string `validate:"omitempty,url"`
	IdempotencyKeyV string `validate:"omitempty,max=128"`
}

func (c StartPaymentCommand) Key() string { return startPaymentKey }

func (c StartPaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c StartPaymentCommand) ResultPrototype() any { return &dto.PaymentSession{} }

func (c StartPaymentCommand) ActorID() domainbooking.UserID { return domainbooking.UserID(c.GuestID) }

// ApplyChargeResultCommand carries a normalized provider notification. It is issued by
// the webhook endpoint and the payment-result consumer, never on behalf of a user.
type ApplyChargeResultCommand struct {
	PaymentID        string `validate:"required"`
	Outcome          string `validate:"required,oneof=succeeded failed"`
	GatewayReference string
}

func (c ApplyChargeResultCommand) Key() string { return applyChargeResultKey }

// CommandHandlers adapts the booking service to the command bus.
type CommandHandlers struct {
	Service   *bookingsvc.Service
	ReturnURL string
}

func (h CommandHandlers) Create(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	b, err := h.Service.Create(ctx, bookingsvc.CreateParams{
		GuestID:     domainbooking.UserID(cmd.GuestID),
		PropertyID:  domainbooking.PropertyID(cmd.PropertyID),
		CheckIn:     cmd.CheckIn,
		CheckOut:    cmd.CheckOut,
		GuestsCount: cmd.Guests,
	})
	return mapped(b, err)
}

func (h CommandHandlers) Cancel(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	return mapped(h.Service.Cancel(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID(), cmd.Reason))
}

func (h CommandHandlers) Confirm(ctx context.Context, cmd ConfirmBookingCommand) (*dto.Booking, error) {
	return mapped(h.Service.Confirm(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID()))
}

func (h CommandHandlers) Reject(ctx context.Context, cmd RejectBookingCommand) (*dto.Booking, error) {
	return mapped(h.Service.Reject(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID(), cmd.Reason))
}

func (h CommandHandlers) StartPayment(ctx context.Context, cmd StartPaymentCommand) (*dto.PaymentSession, error) {
	returnURL := cmd.ReturnURL
	if returnURL == "" {
		returnURL = h.ReturnURL
	}
	b, handle, err := h.Service.StartPayment(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID(), returnURL)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentSession{
		Booking:     dto.MapBooking(b),
		PaymentID:   string(handle.ID),
		RedirectURL: handle.RedirectURL,
	}, nil
}

// ApplyChargeResult returns a nil booking when the notification was a no-op.
func (h CommandHandlers) ApplyChargeResult(ctx context.Context, cmd ApplyChargeResultCommand) (*dto.Booking, error) {
	b, err := h.Service.ApplyChargeResult(ctx, payment.ChargeResult{
		PaymentID:        payment.PaymentID(cmd.PaymentID),
		Outcome:          payment.Outcome(cmd.Outcome),
		GatewayReference: cmd.GatewayReference,
	})
	if err != nil || b == nil {
		return nil, err
	}
	return mapped(b, nil)
}

func mapped(b *domainbooking.Booking, err error) (*dto.Booking, error) {
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// RegisterCommands binds every booking command to reg.
func RegisterCommands(reg *commands.Registry, h CommandHandlers) {
	commands.Register(reg, createBookingKey, commands.HandlerFunc[CreateBookingCommand, *dto.Booking](h.Create))
	commands.Register(reg, cancelBookingKey, commands.HandlerFunc[CancelBookingCommand, *dto.Booking](h.Cancel))
	commands.Register(reg, confirmBookingKey, commands.HandlerFunc[ConfirmBookingCommand, *dto.Booking](h.Confirm))
	commands.Register(reg, rejectBookingKey, commands.HandlerFunc[RejectBookingCommand, *dto.Booking](h.Reject))
	commands.Register(reg, startPaymentKey, commands.HandlerFunc[StartPaymentCommand, *dto.PaymentSession](h.StartPayment))
	commands.Register(reg, applyChargeResultKey, commands.HandlerFunc[ApplyChargeResultCommand, *dto.Booking](h.ApplyChargeResult))
}

var (
	_ middleware.IdempotentCommand = CreateBookingCommand{}
	_ middleware.IdempotentCommand = StartPaymentCommand{}
	_ middleware.ActorScoped       = CancelBookingCommand{}
)
