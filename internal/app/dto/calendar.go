package dto

import (
	"time"

	"stayhub/internal/domain/shared/daterange"
)

type CalendarBlock struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Calendar lists the occupied ranges of a property inside the requested window.
type Calendar struct {
	PropertyID string          `json:"property_id"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Blocks     []CalendarBlock `json:"blocks"`
}

func MapCalendar(propertyID string, window daterange.DateRange, busy []daterange.DateRange) Calendar {
	blocks := make([]CalendarBlock, 0, len(busy))
	for _, r := range busy {
		blocks = append(blocks, CalendarBlock{From: r.CheckIn, To: r.CheckOut})
	}
	return Calendar{PropertyID: propertyID, From: window.CheckIn, To: window.CheckOut, Blocks: blocks}
}
