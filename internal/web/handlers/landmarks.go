package handlers

import (
	"net/http"

	"github.com/example/facegate/internal/recognizer"
)

// LandmarksHandler handles detection-only requests.
type LandmarksHandler struct {
	service *recognizer.Service
}

// NewLandmarksHandler creates a new landmarks handler.
func NewLandmarksHandler(svc *recognizer.Service) *LandmarksHandler {
	return &LandmarksHandler{service: svc}
}

// Extract returns every face found in the image with its bounding box and
// landmarks, without matching or enrolling anything.
func (h *LandmarksHandler) Extract(w http.ResponseWriter, r *http.Request) {
	imageData, ok := readImage(w, r)
	if !ok {
		return
	}

	faces, err := h.service.ExtractLandmarks(r.Context(), imageData)
	if err != nil {
		respondEncodeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces_count": len(faces),
		"faces":       faces,
	})
}
