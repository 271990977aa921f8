package booking

import (
	"time"

	"stayhub/internal/domain/shared/money"
)

// CancellationPolicySnapshot is frozen on the booking at creation time.
type CancellationPolicySnapshot struct {
	PolicyID                  string
	FreeCancellationUntil     time.Time
	PreCheckInPenaltyPercent  int
	PostCheckInPenaltyPercent int
}

// FlexiblePolicy refunds in full until a day before check-in, half afterwards
// and nothing once the stay has started.
func FlexiblePolicy(checkIn time.Time) CancellationPolicySnapshot {
	return CancellationPolicySnapshot{
		PolicyID:                  "flexible",
		FreeCancellationUntil:     checkIn.Add(-24 * time.Hour),
		PreCheckInPenaltyPercent:  50,
		PostCheckInPenaltyPercent: 100,
	}
}

// CalculateRefund splits paid into the refundable part and the penalty kept by the owner.
func (c CancellationPolicySnapshot) CalculateRefund(paid money.Money, cancelAt, checkIn time.Time) (refund money.Money, penalty money.Money, err error) {
	if cancelAt.IsZero() {
		cancelAt = time.Now().UTC()
	}
	percent := 0
	switch {
	case c.PolicyID == "":
	case cancelAt.Before(checkIn):
		if c.FreeCancellationUntil.IsZero() || !cancelAt.Before(c.FreeCancellationUntil) {
			percent = c.PreCheckInPenaltyPercent
		}
	default:
		percent = c.PostCheckInPenaltyPercent
	}
	penalty = paid.Percent(percent)
	refund, err = paid.Sub(penalty)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	return refund, penalty, nil
}

