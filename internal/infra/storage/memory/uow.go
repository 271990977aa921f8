package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	appoutbox "stayhub/internal/app/outbox"
	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
)

var ErrUnitClosed = errors.New("memory: unit of work already finished")

// Factory hands out units that stage writes until Commit.
type Factory struct {
	Bookings *BookingRepository
	Outbox   *Outbox
}

func (f Factory) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{repo: f.Bookings, box: f.Outbox, readOnly: opts.ReadOnly, staged: map[domainbooking.BookingID]*domainbooking.Booking{}}, nil
}

type Unit struct {
	mu       sync.Mutex
	repo     *BookingRepository
	box      *Outbox
	readOnly bool
	done     bool
	staged   map[domainbooking.BookingID]*domainbooking.Booking
	order    []domainbooking.BookingID
	records  []appoutbox.EventRecord
}

func (u *Unit) Bookings() domainbooking.Repository { return unitBookings{u} }

func (u *Unit) Outbox() appoutbox.Outbox { return unitOutbox{u} }

func (u *Unit) Commit(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly || (len(u.order) == 0 && len(u.records) == 0) {
		return nil
	}
	batch := make([]*domainbooking.Booking, 0, len(u.order))
	for _, id := range u.order {
		batch = append(batch, u.staged[id])
	}
	if err := u.repo.saveAll(batch); err != nil {
		return err
	}
	if u.box != nil {
		u.box.addAll(u.records)
	}
	return nil
}

func (u *Unit) Rollback(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.staged = nil
	u.records = nil
	return nil
}

type unitBookings struct{ u *Unit }

func (b unitBookings) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b.u.mu.Lock()
	staged, ok := b.u.staged[id]
	b.u.mu.Unlock()
	if ok {
		c := staged.Clone()
		return &c, nil
	}
	return b.u.repo.ByID(ctx, id)
}

// Save stages the booking. Version checks run at Commit, which also bumps the
// version of the staged value.
func (b unitBookings) Save(_ context.Context, booking *domainbooking.Booking) error {
	b.u.mu.Lock()
	defer b.u.mu.Unlock()
	if b.u.done || b.u.readOnly {
		return ErrUnitClosed
	}
	if _, ok := b.u.staged[booking.ID]; !ok {
		b.u.order = append(b.u.order, booking.ID)
	}
	b.u.staged[booking.ID] = booking
	return nil
}

func (b unitBookings) ActiveByProperty(ctx context.Context, propertyID domainbooking.PropertyID) ([]*domainbooking.Booking, error) {
	stored, err := b.u.repo.ActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return b.overlay(stored, func(bk *domainbooking.Booking) bool {
		return bk.PropertyID == propertyID && bk.Status.Active()
	}), nil
}

func (b unitBookings) ListByGuest(ctx context.Context, guestID domainbooking.UserID) ([]*domainbooking.Booking, error) {
	stored, err := b.u.repo.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	return b.overlay(stored, func(bk *domainbooking.Booking) bool { return bk.GuestID == guestID }), nil
}

func (b unitBookings) DueForCompletion(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	return b.u.repo.DueForCompletion(ctx, now, limit)
}

// overlay replaces stored rows by their staged versions and appends staged rows that match.
func (b unitBookings) overlay(stored []*domainbooking.Booking, keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	b.u.mu.Lock()
	defer b.u.mu.Unlock()
	seen := map[domainbooking.BookingID]bool{}
	out := make([]*domainbooking.Booking, 0, len(stored))
	for _, s := range stored {
		seen[s.ID] = true
		if staged, ok := b.u.staged[s.ID]; ok {
			if keep(staged) {
				c := staged.Clone()
				out = append(out, &c)
			}
			continue
		}
		out = append(out, s)
	}
	for _, id := range b.u.order {
		staged := b.u.staged[id]
		if !seen[id] && keep(staged) {
			c := staged.Clone()
			out = append(out, &c)
		}
	}
	return out
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	o.u.mu.Lock()
	defer o.u.mu.Unlock()
	if o.u.done {
		return ErrUnitClosed
	}
	o.u.records = append(o.u.records, record)
	return nil
}

var _ uow.Factory = Factory{}
