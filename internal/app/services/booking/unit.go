package booking

import (
	"context"
	"fmt"

	"stayhub/internal/app/outbox"
	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
)

type mutation func(execCtx context.Context, cur domainbooking.Booking) (next domainbooking.Booking, changed bool, err error)

// withProperty runs fn inside a unit of work while holding the property lock. Once the
// lock is held the work is detached from caller cancellation and bounded by the
// persist timeout, so a disconnecting client cannot abort it between side effects.
// Events of the returned bookings go to the outbox in the same unit and are
// announced after commit.
func (s *Service) withProperty(ctx context.Context, propertyID domainbooking.PropertyID, fn func(context.Context, uow.UnitOfWork) ([]*domainbooking.Booking, error)) error {
	timeout := s.persistTimeout()
	if s.Locker != nil {
		lockCtx, cancelLock := context.WithTimeout(ctx, timeout)
		unlock, err := s.Locker.Lock(lockCtx, "property:"+string(propertyID))
		cancelLock()
		if err != nil {
			return err
		}
		defer unlock()
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	unit, execCtx, err := uow.Begin(persistCtx, s.Units, uow.TxOptions{})
	if err != nil {
		return err
	}
	changed, err := fn(execCtx, unit)
	if err != nil {
		_ = unit.Rollback(execCtx)
		return err
	}
	for _, b := range changed {
		if err := outbox.RecordDomainEvents(execCtx, unit.Outbox(), s.Encoder, b.PendingEvents()); err != nil {
			_ = unit.Rollback(execCtx)
			return err
		}
	}
	if err := unit.Commit(execCtx); err != nil {
		_ = unit.Rollback(execCtx)
		return err
	}
	for _, b := range changed {
		s.notify(ctx, *b)
		b.ClearEvents()
	}
	return nil
}

// mutate reloads the booking under its property lock and persists what fn returns.
func (s *Service) mutate(ctx context.Context, id domainbooking.BookingID, fn mutation) (*domainbooking.Booking, error) {
	peek, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	var result *domainbooking.Booking
	err = s.withProperty(ctx, peek.PropertyID, func(execCtx context.Context, unit uow.UnitOfWork) ([]*domainbooking.Booking, error) {
		cur, err := unit.Bookings().ByID(execCtx, id)
		if err != nil {
			return nil, err
		}
		next, changed, err := fn(execCtx, cur.Clone())
		if err != nil {
			return nil, err
		}
		if !changed {
			result = cur
			return nil, nil
		}
		if err := unit.Bookings().Save(execCtx, &next); err != nil {
			return nil, fmt.Errorf("save booking %s: %w", id, err)
		}
		result = &next
		return []*domainbooking.Booking{&next}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) read(ctx context.Context, fn func(context.Context, uow.UnitOfWork) error) error {
	unit, execCtx, err := uow.Begin(ctx, s.Units, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = unit.Rollback(execCtx) }()
	return fn(execCtx, unit)
}

func (s *Service) load(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var b *domainbooking.Booking
	err := s.read(ctx, func(execCtx context.Context, unit uow.UnitOfWork) error {
		var err error
		b, err = unit.Bookings().ByID(execCtx, id)
		return err
	})
	return b, err
}
