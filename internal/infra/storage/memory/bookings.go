package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domainbooking "stayhub/internal/domain/booking"
)

// BookingRepository keeps bookings in memory. Stored values are copies, so callers
// never share state with the repository.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]domainbooking.Booking)}
}

func (r *BookingRepository) ByID(_ context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	out := b.Clone()
	return &out, nil
}

func (r *BookingRepository) Save(_ context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(b); err != nil {
		return err
	}
	r.putLocked(b)
	return nil
}

func (r *BookingRepository) ActiveByProperty(_ context.Context, propertyID domainbooking.PropertyID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b domainbooking.Booking) bool {
		return b.PropertyID == propertyID && b.Status.Active()
	}), nil
}

func (r *BookingRepository) ListByGuest(_ context.Context, guestID domainbooking.UserID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b domainbooking.Booking) bool { return b.GuestID == guestID }), nil
}

func (r *BookingRepository) DueForCompletion(_ context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	out := r.filter(func(b domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusConfirmed && !b.Range.CheckOut.After(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// saveAll applies a batch atomically: either every booking passes the version and
// overlap checks and is stored, or nothing changes.
func (r *BookingRepository) saveAll(batch []*domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batch {
		if err := r.checkLocked(b); err != nil {
			return err
		}
	}
	for _, b := range batch {
		r.putLocked(b)
	}
	return nil
}

func (r *BookingRepository) checkLocked(b *domainbooking.Booking) error {
	stored, exists := r.items[b.ID]
	switch {
	case !exists && b.Version != 0:
		return fmt.Errorf("%w: booking %s vanished", domainbooking.ErrConcurrentUpdate, b.ID)
	case exists && stored.Version != b.Version:
		return fmt.Errorf("%w: booking %s at version %d, have %d", domainbooking.ErrConcurrentUpdate, b.ID, stored.Version, b.Version)
	}
	if !b.Status.Active() {
		return nil
	}
	for id, other := range r.items {
		if id == b.ID || other.PropertyID != b.PropertyID {
			continue
		}
		if other.Occupies(b.Range) {
			return fmt.Errorf("%w: overlaps booking %s", domainbooking.ErrDatesUnavailable, id)
		}
	}
	return nil
}

func (r *BookingRepository) putLocked(b *domainbooking.Booking) {
	b.Version++
	stored := b.Clone()
	stored.ClearEvents()
	r.items[b.ID] = stored
}

func (r *BookingRepository) filter(keep func(domainbooking.Booking) bool) []*domainbooking.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if keep(b) {
			c := b.Clone()
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
