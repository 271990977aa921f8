package availability

import (
	"context"
	"fmt"
	"sort"

	"stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/daterange"
)

// Source lists the bookings of a property that still occupy nights.
type Source interface {
	ActiveByProperty(ctx context.Context, propertyID booking.PropertyID) ([]*booking.Booking, error)
}

// Index answers overlap queries over the bookings of one property. Callers must hold
// the property lock for as long as the answer is relied upon.
type Index struct {
	Bookings Source
}

func NewIndex(src Source) *Index {
	return &Index{Bookings: src}
}

// IsAvailable reports whether no active booking other than exclude overlaps dr.
func (i *Index) IsAvailable(ctx context.Context, propertyID booking.PropertyID, dr daterange.DateRange, exclude booking.BookingID) (bool, error) {
	conflicts, err := i.Conflicts(ctx, propertyID, dr, exclude)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

func (i *Index) Conflicts(ctx context.Context, propertyID booking.PropertyID, dr daterange.DateRange, exclude booking.BookingID) ([]booking.BookingID, error) {
	if err := dr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", booking.ErrInvalidDateRange, err.Error())
	}
	active, err := i.Bookings.ActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("availability: load bookings: %w", err)
	}
	var out []booking.BookingID
	for _, b := range active {
		if b.ID == exclude || b.PropertyID != propertyID {
			continue
		}
		if b.Occupies(dr) {
			out = append(out, b.ID)
		}
	}
	return out, nil
}

// Busy returns the occupied ranges of a property that intersect window, ordered by check-in.
func (i *Index) Busy(ctx context.Context, propertyID booking.PropertyID, window daterange.DateRange) ([]daterange.DateRange, error) {
	active, err := i.Bookings.ActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("availability: load bookings: %w", err)
	}
	var out []daterange.DateRange
	for _, b := range active {
		if b.Occupies(window) {
			out = append(out, b.Range)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CheckIn.Before(out[b].CheckIn) })
	return out, nil
}
