package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/facegate/internal/recognizer"
)

func TestStatsGet(t *testing.T) {
	f := newFixture(t)
	h := NewStatsHandler(f.service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var stats recognizer.Stats
	parseJSONResponse(t, rec, &stats)
	if stats.EnrolledCount != 2 {
		t.Errorf("enrolled = %d, want 2", stats.EnrolledCount)
	}
	if stats.Threshold != 0.5 {
		t.Errorf("threshold = %f, want 0.5", stats.Threshold)
	}
	if stats.Model != "arcface" {
		t.Errorf("model = %s", stats.Model)
	}
}

func TestThresholdUpdate(t *testing.T) {
	f := newFixture(t)
	h := NewStatsHandler(f.service)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/threshold", strings.NewReader(`{"threshold": 0.72}`))
	rec := httptest.NewRecorder()
	h.SetThreshold(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	if got := f.service.Runtime().Threshold(); got != 0.72 {
		t.Errorf("threshold = %f, want 0.72", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/threshold", nil)
	rec = httptest.NewRecorder()
	h.GetThreshold(rec, req)

	var body map[string]float64
	parseJSONResponse(t, rec, &body)
	if body["threshold"] != 0.72 {
		t.Errorf("reported threshold = %f", body["threshold"])
	}
}

func TestThresholdRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	h := NewStatsHandler(f.service)

	for _, payload := range []string{`{"threshold": 1.5}`, `{"threshold": -0.2}`, `not json`} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/threshold", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.SetThreshold(rec, req)
		assertStatusCode(t, rec, http.StatusBadRequest)
	}

	if got := f.service.Runtime().Threshold(); got != 0.5 {
		t.Errorf("threshold changed to %f after rejected updates", got)
	}
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	HealthCheck(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var body map[string]string
	parseJSONResponse(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %s", body["status"])
	}
}
