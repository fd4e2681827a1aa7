package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// SignalHandler serves persisted runs
type SignalHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(s store.Store, log *logger.Logger) *SignalHandler {
	return &SignalHandler{store: s, logger: log}
}

// GetLatestRun returns the most recent run
// GET /api/runs/latest
func (h *SignalHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	h.respondRun(w, run, err)
}

// GetRun returns one run
// GET /api/runs/{id}
func (h *SignalHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := h.store.GetRun(r.Context(), id)
	h.respondRun(w, run, err)
}

func (h *SignalHandler) respondRun(w http.ResponseWriter, run *store.Run, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to read run")
		respondError(w, http.StatusInternalServerError, "failed to read run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ListSignals returns a run's signals
// GET /api/runs/{id}/signals?code=SH600000&type=BUY&from=2024-01-01&to=2024-12-31&limit=100
// id 가 "latest" 이면 최근 run
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var runID uuid.UUID
	if raw := mux.Vars(r)["id"]; raw == "latest" {
		run, err := h.store.LatestRun(ctx)
		if err != nil {
			h.respondRun(w, nil, err)
			return
		}
		runID = run.ID
	} else {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid run id")
			return
		}
		runID = id
	}

	q := r.URL.Query()
	filter := store.SignalFilter{
		Code:  q.Get("code"),
		Limit: queryLimit(r, 500, 5000),
	}
	if t := contracts.SignalType(q.Get("type")); t != "" {
		if t != contracts.SignalBuy && t != contracts.SignalSell && t != contracts.SignalHold {
			respondError(w, http.StatusBadRequest, "type must be BUY, SELL or HOLD")
			return
		}
		filter.Type = t
	}
	var err error
	if filter.From, err = queryDate(r, "from"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	signals, err := h.store.ListSignals(ctx, runID, filter)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID.String()).Error("Failed to list signals")
		respondError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []contracts.TradingSignal{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"count":   len(signals),
		"signals": signals,
	})
}
