package handlers

import (
	"net/http"

	"github.com/example/facegate/internal/recognizer"
)

// RecognizeHandler handles the recognition endpoint.
type RecognizeHandler struct {
	service *recognizer.Service
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(svc *recognizer.Service) *RecognizeHandler {
	return &RecognizeHandler{service: svc}
}

// Recognize matches the uploaded image against the enrolled population and
// marks attendance on a confident hit.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	imageData, ok := readImage(w, r)
	if !ok {
		return
	}

	result, err := h.service.Recognize(r.Context(), imageData)
	if err != nil && result == nil {
		respondEncodeError(w, err)
		return
	}
	if err != nil {
		// The match succeeded but the attendance write failed. Return the
		// outcome so the kiosk can still show who was recognized.
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"result": result,
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}
