// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/example/facegate/internal/encoder"
	"github.com/example/facegate/internal/faceindex"
)

// maxUploadSize caps uploaded image payloads at 20 MB.
const maxUploadSize = 20 << 20

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// readImage extracts the image payload from the request: a multipart form
// with a "file" part, a JSON body with a base64 "image" field, or a raw body
// with an image content type.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		return readBase64Image(w, r)
	}
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse multipart form")
			return nil, false
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "missing file part")
			return nil, false
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read file")
			return nil, false
		}
		if len(data) == 0 {
			respondError(w, http.StatusBadRequest, "empty file")
			return nil, false
		}
		return data, true
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "empty body")
		return nil, false
	}
	return data, true
}

// readBase64Image decodes a JSON body of the form {"image": "<base64>"}.
// Kiosk clients send webcam frames this way; a data URL prefix is stripped.
func readBase64Image(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, false
	}
	raw := body.Image
	if idx := strings.Index(raw, ";base64,"); idx >= 0 {
		raw = raw[idx+len(";base64,"):]
	}
	if raw == "" {
		respondError(w, http.StatusBadRequest, "empty image")
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid base64 image")
		return nil, false
	}
	return data, true
}

// respondEncodeError maps face extraction failures to client errors.
func respondEncodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, encoder.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
	case errors.Is(err, encoder.ErrAmbiguousFaces):
		respondError(w, http.StatusUnprocessableEntity, "image contains more than one usable face")
	case errors.Is(err, encoder.ErrLowQuality):
		respondError(w, http.StatusUnprocessableEntity, "face detection confidence too low")
	case errors.Is(err, faceindex.ErrDimensionMismatch), errors.Is(err, faceindex.ErrInvalidEmbedding):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusBadGateway, "face model unavailable: "+err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
