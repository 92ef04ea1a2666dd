package handlers

import (
	"net/http"
	"time"

	"github.com/example/facegate/internal/recognizer"
	"github.com/example/facegate/internal/syncer"
)

// SyncHandler triggers and reports directory reconciliation.
type SyncHandler struct {
	service    *recognizer.Service
	reconciler *syncer.Reconciler
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(svc *recognizer.Service, rec *syncer.Reconciler) *SyncHandler {
	return &SyncHandler{service: svc, reconciler: rec}
}

// Trigger runs one reconciliation pass. The force query parameter re-enrolls
// identities that are already in the index.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		respondError(w, http.StatusServiceUnavailable, "directory sync is not configured")
		return
	}

	force := r.URL.Query().Get("force") == "true" || r.URL.Query().Get("force") == "1"

	report, err := h.reconciler.Sync(r.Context(), syncer.Options{Force: force})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.service.Runtime().MarkSynced(time.Now())
	respondJSON(w, http.StatusOK, report)
}

// Status returns the report of the last completed pass.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		respondError(w, http.StatusServiceUnavailable, "directory sync is not configured")
		return
	}

	report := h.reconciler.LastReport()
	if report == nil {
		respondJSON(w, http.StatusOK, map[string]any{"synced": false})
		return
	}
	respondJSON(w, http.StatusOK, report)
}
