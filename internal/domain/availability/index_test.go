package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/daterange"
)

type stubSource struct {
	bookings []*booking.Booking
	err      error
}

func (s stubSource) ActiveByProperty(_ context.Context, propertyID booking.PropertyID) ([]*booking.Booking, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.PropertyID == propertyID && b.Status.Active() {
			out = append(out, b)
		}
	}
	return out, nil
}

func rng(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	ci, _ := time.Parse(time.DateOnly, in)
	co, _ := time.Parse(time.DateOnly, out)
	dr, err := daterange.New(ci, co)
	require.NoError(t, err)
	return dr
}

func TestIsAvailable(t *testing.T) {
	existing := &booking.Booking{ID: "b-1", PropertyID: "P1", Status: booking.StatusConfirmed, Range: rng(t, "2025-07-01", "2025-07-10")}
	cancelled := &booking.Booking{ID: "b-2", PropertyID: "P1", Status: booking.StatusCancelled, Range: rng(t, "2025-07-10", "2025-07-20")}
	rejected := &booking.Booking{ID: "b-3", PropertyID: "P1", Status: booking.StatusRejected, Range: rng(t, "2025-08-01", "2025-08-05")}
	other := &booking.Booking{ID: "b-4", PropertyID: "P2", Status: booking.StatusPending, Range: rng(t, "2025-07-12", "2025-07-15")}
	idx := NewIndex(stubSource{bookings: []*booking.Booking{existing, cancelled, rejected, other}})

	tests := []struct {
		name    string
		dr      daterange.DateRange
		exclude booking.BookingID
		want    bool
	}{
		{name: "inside existing", dr: rng(t, "2025-07-05", "2025-07-08"), want: false},
		{name: "touching check-out", dr: rng(t, "2025-07-10", "2025-07-12"), want: true},
		{name: "touching check-in", dr: rng(t, "2025-06-25", "2025-07-01"), want: true},
		{name: "spanning existing", dr: rng(t, "2025-06-25", "2025-07-15"), want: false},
		{name: "over cancelled", dr: rng(t, "2025-07-12", "2025-07-18"), want: true},
		{name: "over rejected", dr: rng(t, "2025-08-01", "2025-08-03"), want: true},
		{name: "excluding self", dr: rng(t, "2025-07-02", "2025-07-04"), exclude: "b-1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := idx.IsAvailable(context.Background(), "P1", tt.dr, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestIsAvailableErrors(t *testing.T) {
	boom := errors.New("boom")
	idx := NewIndex(stubSource{err: boom})
	_, err := idx.IsAvailable(context.Background(), "P1", rng(t, "2025-07-01", "2025-07-02"), "")
	assert.ErrorIs(t, err, boom)

	_, err = idx.IsAvailable(context.Background(), "P1", daterange.DateRange{}, "")
	assert.ErrorIs(t, err, booking.ErrInvalidDateRange)
}

func TestBusyIsSorted(t *testing.T) {
	late := &booking.Booking{ID: "b-2", PropertyID: "P1", Status: booking.StatusPending, Range: rng(t, "2025-07-20", "2025-07-22")}
	early := &booking.Booking{ID: "b-1", PropertyID: "P1", Status: booking.StatusAwaitingPayment, Range: rng(t, "2025-07-01", "2025-07-03")}
	idx := NewIndex(stubSource{bookings: []*booking.Booking{late, early}})

	busy, err := idx.Busy(context.Background(), "P1", rng(t, "2025-07-01", "2025-08-01"))

	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, early.Range, busy[0])
	assert.Equal(t, late.Range, busy[1])
}
