package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/scoretable"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// queryDate parses an optional date query parameter; "" gives the zero date
func queryDate(r *http.Request, name string) (civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return civil.Date{}, nil
	}
	return scoretable.ParseDate(raw)
}

// queryLimit limit 파라미터 (기본값: def, 최대: max)
func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
