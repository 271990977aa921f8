package availability

import (
	"context"
	"fmt"
	"time"

	"stayhub/internal/app/dto"
	"stayhub/internal/app/queries"
	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/daterange"
)

const getCalendarKey = "availability.calendar"

// defaultWindow is used when the caller leaves the upper bound open.
const defaultWindow = 90 * 24 * time.Hour

type GetCalendarQuery struct {
	PropertyID string `validate:"required"`
	From       time.Time
	To         time.Time
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type BusyReader interface {
	Busy(ctx context.Context, propertyID domainbooking.PropertyID, window daterange.DateRange) ([]daterange.DateRange, error)
}

type GetCalendarHandler struct {
	Bookings BusyReader
	Now      func() time.Time
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	from := q.From
	if from.IsZero() {
		from = h.now()
	}
	to := q.To
	if to.IsZero() {
		to = from.Add(defaultWindow)
	}
	window, err := daterange.New(from, to)
	if err != nil {
		return dto.Calendar{}, fmt.Errorf("%w: %s", domainbooking.ErrInvalidDateRange, err.Error())
	}
	busy, err := h.Bookings.Busy(ctx, domainbooking.PropertyID(q.PropertyID), window)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(q.PropertyID, window, busy), nil
}

func (h *GetCalendarHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func Register(reg *queries.Registry, h *GetCalendarHandler) {
	queries.Register[GetCalendarQuery, dto.Calendar](reg, getCalendarKey, h)
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
