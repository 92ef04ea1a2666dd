package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/example/facegate/internal/attendance"
	"github.com/example/facegate/internal/encoder"
	"github.com/example/facegate/internal/faceindex"
	"github.com/example/facegate/internal/recognizer"
	"github.com/example/facegate/internal/store"
	"github.com/example/facegate/internal/store/mock"
)

// fakeEncoder maps image bytes to canned detection results.
type fakeEncoder struct {
	faces map[string]*encoder.DetectedFace
	err   error
}

func (f *fakeEncoder) face(imageData []byte) (*encoder.DetectedFace, error) {
	if f.err != nil {
		return nil, f.err
	}
	if face, ok := f.faces[string(imageData)]; ok {
		return face, nil
	}
	return nil, encoder.ErrNoFaceDetected
}

func (f *fakeEncoder) Encode(ctx context.Context, imageData []byte) ([]encoder.DetectedFace, error) {
	face, err := f.face(imageData)
	if err != nil {
		return nil, err
	}
	return []encoder.DetectedFace{*face}, nil
}

func (f *fakeEncoder) EncodeForEnrollment(ctx context.Context, imageData []byte) (*encoder.DetectedFace, error) {
	return f.face(imageData)
}

func (f *fakeEncoder) EncodeForRecognition(ctx context.Context, imageData []byte) (*encoder.DetectedFace, error) {
	return f.face(imageData)
}

// fixture bundles the wired service and its backing mock store.
type fixture struct {
	service *recognizer.Service
	store   *mock.Store
	coord   *attendance.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := mock.New()
	s.AddIdentity(store.Identity{ID: "u1", FirstName: "Ana", LastName: "Cruz", UserType: "student"})
	s.AddIdentity(store.Identity{ID: "u2", FirstName: "Ben", LastName: "Reyes", UserType: "staff"})

	idx := faceindex.New(4)
	if _, err := idx.Upsert("u1", []float32{1, 0, 0, 0}, faceindex.RecordMeta{Source: faceindex.SourceSync}); err != nil {
		t.Fatalf("seeding u1: %v", err)
	}
	if _, err := idx.Upsert("u2", []float32{0, 1, 0, 0}, faceindex.RecordMeta{Source: faceindex.SourceSync}); err != nil {
		t.Fatalf("seeding u2: %v", err)
	}

	coord, err := attendance.NewCoordinator(s, s, "Asia/Manila")
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	enc := &fakeEncoder{faces: map[string]*encoder.DetectedFace{
		"probe-u1": {Embedding: []float32{0.98, 0.2, 0, 0}, DetScore: 0.9, Landmarks: [][]float64{{1, 2}}},
		"stranger": {Embedding: []float32{0, 0, 0, 1}, DetScore: 0.9},
		"new-face": {Embedding: []float32{0, 0, 1, 0}, DetScore: 0.8},
	}}

	svc := recognizer.New(recognizer.Config{
		Encoder:     enc,
		Index:       idx,
		Coordinator: coord,
		Directory:   s,
		Profiles:    s,
		Runtime:     recognizer.NewRuntimeConfig(0.5, 0),
		Model:       "arcface",
	})

	return &fixture{service: svc, store: s, coord: coord}
}

// imageRequest builds a multipart request carrying the payload as the file part.
func imageRequest(t *testing.T, method, path string, payload []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "probe.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}
