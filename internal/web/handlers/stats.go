package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/example/facegate/internal/recognizer"
)

// StatsHandler handles the stats and threshold endpoints.
type StatsHandler struct {
	service *recognizer.Service
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(svc *recognizer.Service) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Get returns the current service state.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Stats())
}

// GetThreshold returns the active similarity threshold.
func (h *StatsHandler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]float64{
		"threshold": h.service.Runtime().Threshold(),
	})
}

// SetThreshold updates the similarity threshold at runtime.
func (h *StatsHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.service.Runtime().SetThreshold(req.Threshold); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]float64{
		"threshold": h.service.Runtime().Threshold(),
	})
}
