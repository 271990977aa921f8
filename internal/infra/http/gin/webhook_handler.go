package ginserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"stayhub/internal/app/commands"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/services/payments"
	"stayhub/internal/domain/payment"
)

const maxWebhookBody = 1 << 20

type WebhookParser interface {
	ParseWebhook(ctx context.Context, providerName string, payload []byte, header http.Header) (payment.ChargeResult, error)
}

// WebhookHandler turns provider notifications into charge-result commands. Replays
// answer 200 so that providers stop retrying.
type WebhookHandler struct {
	Payments WebhookParser
	Commands commands.Bus
	Limiter  *rate.Limiter
	Logger   *slog.Logger
}

func (h WebhookHandler) Receive(c *gin.Context) {
	if h.Limiter != nil && !h.Limiter.Allow() {
		handleError(c, errRateLimited)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		handleError(c, fmt.Errorf("%w: %s", errInvalidBody, err.Error()))
		return
	}
	provider := c.Param("provider")
	result, err := h.Payments.ParseWebhook(c.Request.Context(), provider, body, c.Request.Header)
	if errors.Is(err, payments.ErrIgnoredEvent) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		h.logger().WarnContext(c.Request.Context(), "webhook rejected", "provider", provider, "error", err)
		handleError(c, err)
		return
	}
	cmd := bookingapp.ApplyChargeResultCommand{
		PaymentID:        string(result.PaymentID),
		Outcome:          string(result.Outcome),
		GatewayReference: result.GatewayReference,
	}
	if _, err := commands.Dispatch[bookingapp.ApplyChargeResultCommand, any](c.Request.Context(), h.Commands, cmd); err != nil {
		h.logger().ErrorContext(c.Request.Context(), "webhook apply failed",
			"provider", provider, "payment_id", result.PaymentID, "outcome", result.Outcome, "error", err)
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

func (h WebhookHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ WebhookHTTP = WebhookHandler{}
