package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/poolcache"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// PoolHandler serves Top-K pools
type PoolHandler struct {
	resolver *poolcache.Resolver
	logger   *logger.Logger
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(resolver *poolcache.Resolver, log *logger.Logger) *PoolHandler {
	return &PoolHandler{resolver: resolver, logger: log}
}

// GetLatest returns the newest pool
// GET /api/pools/latest
func (h *PoolHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	pool, ok, err := h.resolver.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read latest pool")
		respondError(w, http.StatusInternalServerError, "failed to read pool")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no pool published")
		return
	}
	respondJSON(w, http.StatusOK, pool)
}

// GetPool returns one date's pool
// GET /api/pools/{date}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	date, err := scoretable.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pool, ok, err := h.resolver.Pool(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).WithField("date", date.String()).Error("Failed to read pool")
		respondError(w, http.StatusInternalServerError, "failed to read pool")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no pool for "+date.String())
		return
	}
	respondJSON(w, http.StatusOK, pool)
}

// GetMembership reports whether code is in date's pool
// GET /api/pools/{date}/{code}
func (h *PoolHandler) GetMembership(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, err := scoretable.ParseDate(vars["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := contracts.NormalizeCode(vars["code"])

	pool, ok, err := h.resolver.Pool(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read pool")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no pool for "+date.String())
		return
	}

	resp := map[string]interface{}{
		"date":    pool.Date,
		"code":    code,
		"in_pool": pool.Contains(code),
	}
	if s, ok := pool.Scores[code]; ok {
		resp["score"] = s
	}
	respondJSON(w, http.StatusOK, resp)
}
