package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/middleware"
	"stayhub/internal/app/policies"
	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
)

var (
	errMissingActor  = errors.New("http: missing " + ActorHeader + " header")
	errInvalidBody   = errors.New("http: invalid request body")
	errRateLimited   = errors.New("http: too many requests")
	errUnavailable   = errors.New("http: service unavailable")
	errInvalidWindow = errors.New("http: invalid calendar window")
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(err error) (int, string) {
	var transition *booking.InvalidTransitionError
	switch {
	case errors.Is(err, errMissingActor), errors.Is(err, middleware.ErrActorMissing):
		return http.StatusUnauthorized, "missing_actor"
	case errors.Is(err, errInvalidBody), errors.Is(err, errInvalidWindow), errors.Is(err, middleware.ErrValidation),
		booking.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, payment.ErrInvalidWebhook), errors.Is(err, payment.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_payment"
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &transition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, booking.ErrDatesUnavailable):
		return http.StatusConflict, "dates_unavailable"
	case errors.Is(err, booking.ErrConcurrentUpdate), errors.Is(err, payment.ErrConcurrentUpdate),
		errors.Is(err, booking.ErrPaymentMismatch), errors.Is(err, booking.ErrCheckOutNotReached),
		errors.Is(err, middleware.ErrIdempotencyReuse):
		return http.StatusConflict, "conflict"
	case errors.Is(err, payment.ErrNotRefundable):
		return http.StatusConflict, "not_refundable"
	case errors.Is(err, booking.ErrRefundFailed):
		return http.StatusBadGateway, "refund_failed"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	case errors.Is(err, policies.ErrLockTimeout), errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, payments.ErrIgnoredEvent):
		return http.StatusOK, "ignored"
	case errors.Is(err, commands.ErrHandlerNotFound):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func handleError(c *gin.Context, err error) {
	abortWithError(c, err)
}

func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}
