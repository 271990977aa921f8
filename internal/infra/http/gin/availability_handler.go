package ginserver

import (
	"fmt"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayhub/internal/app/dto"
	availabilityapp "stayhub/internal/app/handlers/availability"
	"stayhub/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

// Calendar accepts from/to as RFC 3339 timestamps or plain dates.
func (h AvailabilityHandler) Calendar(c *gin.Context) {
	from, err := parseBound(c.Query("from"))
	if err != nil {
		handleError(c, err)
		return
	}
	to, err := parseBound(c.Query("to"))
	if err != nil {
		handleError(c, err)
		return
	}
	query := availabilityapp.GetCalendarQuery{PropertyID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseBound(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidWindow, raw)
	}
	return t, nil
}

var _ AvailabilityHTTP = AvailabilityHandler{}
