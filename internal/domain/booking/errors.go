package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("booking: not found")
	ErrInvalidTransition  = errors.New("booking: invalid transition")
	ErrDatesUnavailable   = errors.New("booking: dates unavailable")
	ErrUnauthorized       = errors.New("booking: actor not allowed")
	ErrRefundFailed       = errors.New("booking: refund failed")
	ErrConcurrentUpdate   = errors.New("booking: concurrent update")
	ErrInvalidDateRange   = errors.New("booking: invalid date range")
	ErrInvalidGuests      = errors.New("booking: guests count must be positive")
	ErrCapacityExceeded   = errors.New("booking: guests count exceeds property capacity")
	ErrCheckInInPast      = errors.New("booking: check-in date is in the past")
	ErrOwnProperty        = errors.New("booking: owner cannot book own property")
	ErrInvalidPrice       = errors.New("booking: price must not be negative")
	ErrRefundRequired     = errors.New("booking: refund receipt required to cancel a paid booking")
	ErrPaymentMismatch    = errors.New("booking: payment does not match active charge")
	ErrCheckOutNotReached = errors.New("booking: check-out date not reached")
)

// InvalidTransitionError reports an event that the current status does not accept.
type InvalidTransitionError struct {
	From  Status
	Event EventKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking: invalid transition: %s does not accept %s", e.From, e.Event)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidTransition(from Status, ev Event) error {
	return &InvalidTransitionError{From: from, Event: ev.Kind()}
}

// IsValidation reports whether err is a synchronous input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidGuests) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrCheckInInPast) ||
		errors.Is(err, ErrOwnProperty) ||
		errors.Is(err, ErrInvalidPrice)
}
