package handlers

import (
	"net/http"

	"github.com/wonny/aegis-signal/internal/rebalance"
)

// CalendarHandler serves rebalance dates
type CalendarHandler struct {
	source rebalance.DateSource
	period rebalance.Period
}

// NewCalendarHandler period is the default when the query omits one
func NewCalendarHandler(source rebalance.DateSource, period rebalance.Period) *CalendarHandler {
	return &CalendarHandler{source: source, period: period}
}

// GetCalendar returns the rebalance dates
// GET /api/calendar?period=month&start=2024-01-01&end=2024-06-30
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	period := h.period
	if p := r.URL.Query().Get("period"); p != "" {
		parsed, err := rebalance.ParsePeriod(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		period = parsed
	}

	var (
		rng rebalance.DateRange
		err error
	)
	if rng.Start, err = queryDate(r, "start"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rng.End, err = queryDate(r, "end"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rng.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates := rebalance.Dates(h.source, rng, period)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"period": period,
		"range":  rng.String(),
		"count":  len(dates),
		"dates":  dates,
	})
}
