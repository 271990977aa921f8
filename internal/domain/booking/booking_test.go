package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/money"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	ci, err := time.Parse(time.DateOnly, in)
	require.NoError(t, err)
	co, err := time.Parse(time.DateOnly, out)
	require.NoError(t, err)
	dr, err := daterange.New(ci, co)
	require.NoError(t, err)
	return dr
}

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	dr := stay(t, "2025-07-01", "2025-07-10")
	b, err := NewBooking(CreateParams{
		ID:            "b-1",
		PropertyID:    "p-1",
		GuestID:       "guest-1",
		OwnerID:       "owner-1",
		Range:         dr,
		GuestsCount:   2,
		Capacity:      4,
		PricePerNight: money.Must(5000, "RUB"),
		Policy:        FlexiblePolicy(dr.CheckIn),
		CreatedAt:     testNow,
	})
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newTestBooking(t)

	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentStatusNone, b.PaymentStatus)
	assert.Equal(t, int64(45000), b.TotalPrice.Amount)
	assert.Equal(t, "RUB", b.TotalPrice.Currency)
	require.Len(t, b.PendingEvents(), 1)
	assert.Equal(t, "booking.requested", b.PendingEvents()[0].EventName())
}

func TestNewBookingValidation(t *testing.T) {
	valid := stay(t, "2025-07-01", "2025-07-10")
	tests := []struct {
		name    string
		mutate  func(p *CreateParams)
		wantErr error
	}{
		{
			name:    "inverted range",
			mutate:  func(p *CreateParams) { p.Range = daterange.DateRange{CheckIn: valid.CheckOut, CheckOut: valid.CheckIn} },
			wantErr: ErrInvalidDateRange,
		},
		{
			name:    "no guests",
			mutate:  func(p *CreateParams) { p.GuestsCount = 0 },
			wantErr: ErrInvalidGuests,
		},
		{
			name:    "over capacity",
			mutate:  func(p *CreateParams) { p.GuestsCount = 5 },
			wantErr: ErrCapacityExceeded,
		},
		{
			name:    "check-in in the past",
			mutate:  func(p *CreateParams) { p.CreatedAt = time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC) },
			wantErr: ErrCheckInInPast,
		},
		{
			name:    "owner books own property",
			mutate:  func(p *CreateParams) { p.GuestID = p.OwnerID },
			wantErr: ErrOwnProperty,
		},
		{
			name:    "negative price",
			mutate:  func(p *CreateParams) { p.PricePerNight = money.Must(-1, "RUB") },
			wantErr: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := CreateParams{
				ID:            "b-1",
				PropertyID:    "p-1",
				GuestID:       "guest-1",
				OwnerID:       "owner-1",
				Range:         valid,
				GuestsCount:   2,
				Capacity:      4,
				PricePerNight: money.Must(5000, "RUB"),
				CreatedAt:     testNow,
			}
			tt.mutate(&params)

			b, err := NewBooking(params)

			assert.Nil(t, b)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestCloneDetachesState(t *testing.T) {
	b := newTestBooking(t)
	paid := testNow
	b.PaidAt = &paid

	c := b.Clone()
	*c.PaidAt = paid.Add(time.Hour)
	c.Record(BookingCompleted{BookingID: b.ID})

	assert.Equal(t, paid, *b.PaidAt)
	assert.Len(t, b.PendingEvents(), 1)
	assert.Len(t, c.PendingEvents(), 2)
}

func TestCancellationPolicyRefund(t *testing.T) {
	checkIn := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	policy := FlexiblePolicy(checkIn)
	paid := money.Must(10000, "RUB")

	tests := []struct {
		name        string
		cancelAt    time.Time
		wantRefund  int64
		wantPenalty int64
	}{
		{name: "free window", cancelAt: checkIn.Add(-72 * time.Hour), wantRefund: 10000, wantPenalty: 0},
		{name: "last day before check-in", cancelAt: checkIn.Add(-2 * time.Hour), wantRefund: 5000, wantPenalty: 5000},
		{name: "after check-in", cancelAt: checkIn.Add(24 * time.Hour), wantRefund: 0, wantPenalty: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refund, penalty, err := policy.CalculateRefund(paid, tt.cancelAt, checkIn)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRefund, refund.Amount)
			assert.Equal(t, tt.wantPenalty, penalty.Amount)
		})
	}

	refund, penalty, err := CancellationPolicySnapshot{}.CalculateRefund(paid, checkIn.Add(time.Hour), checkIn)
	require.NoError(t, err)
	assert.Equal(t, paid, refund)
	assert.True(t, penalty.IsZero())
}
