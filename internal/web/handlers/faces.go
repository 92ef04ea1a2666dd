package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/facegate/internal/faceindex"
	"github.com/example/facegate/internal/recognizer"
)

// FacesHandler handles enrollment management endpoints.
type FacesHandler struct {
	service *recognizer.Service
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(svc *recognizer.Service) *FacesHandler {
	return &FacesHandler{service: svc}
}

// faceSummary is the API view of an enrolled record. The embedding itself
// stays server-side.
type faceSummary struct {
	IdentityID string    `json:"identity_id"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func summarize(rec faceindex.FaceRecord) faceSummary {
	return faceSummary{
		IdentityID: rec.IdentityID,
		Confidence: rec.Confidence,
		Source:     string(rec.Source),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// List returns every enrolled identity.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.service.List()
	faces := make([]faceSummary, 0, len(records))
	for _, rec := range records {
		faces = append(faces, summarize(rec))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(faces),
		"faces": faces,
	})
}

// Enroll stores the face found in the uploaded image under the identity in
// the URL, replacing any previous enrollment.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")
	if identityID == "" {
		respondError(w, http.StatusBadRequest, "identity id is required")
		return
	}

	imageData, ok := readImage(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Enroll(r.Context(), identityID, imageData)
	if err != nil {
		respondEncodeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, summarize(*rec))
}

// Delete removes the identity's enrollment.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")
	if identityID == "" {
		respondError(w, http.StatusBadRequest, "identity id is required")
		return
	}

	if err := h.service.Delete(r.Context(), identityID); err != nil {
		if errors.Is(err, faceindex.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not enrolled")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": identityID})
}
