package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/aegis-signal/internal/classifier"
	"github.com/wonny/aegis-signal/internal/contracts"
)

// ClassifyHandler exposes the threshold classifier
type ClassifyHandler struct {
	classifier *classifier.Classifier
}

// NewClassifyHandler creates a new classify handler
func NewClassifyHandler(c *classifier.Classifier) *ClassifyHandler {
	return &ClassifyHandler{classifier: c}
}

type classifyRequest struct {
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
	InPool     *bool    `json:"in_pool"`
}

type classifyResponse struct {
	Type       contracts.SignalType     `json:"signal_type"`
	Strength   contracts.SignalStrength `json:"signal_strength"`
	Reason     string                   `json:"reason,omitempty"`
	Thresholds classifier.Thresholds    `json:"thresholds"`
}

// Classify classifies one score
// POST /api/classify {"score":0.03,"confidence":0.9,"in_pool":true}
func (h *ClassifyHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Score == nil {
		respondError(w, http.StatusBadRequest, "score is required")
		return
	}
	if c := req.Confidence; c != nil && (*c < 0 || *c > 1) {
		respondError(w, http.StatusBadRequest, "confidence must be within [0,1]")
		return
	}

	var d classifier.Decision
	if req.InPool != nil {
		d = h.classifier.ClassifyInPool(*req.Score, req.Confidence, *req.InPool)
	} else {
		d = h.classifier.Classify(*req.Score, req.Confidence)
	}

	respondJSON(w, http.StatusOK, classifyResponse{
		Type:       d.Type,
		Strength:   d.Strength,
		Reason:     d.Reason,
		Thresholds: h.classifier.Thresholds(),
	})
}
