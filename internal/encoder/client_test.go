package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeDetectServer returns an encoder-shaped server that always responds
// with the given faces.
func fakeDetectServer(t *testing.T, faces []DetectedFace) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file part", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(detectResponse{
			FacesCount: len(faces),
			Faces:      faces,
			Model:      "arcface",
			Dim:        512,
		})
	}))
}

func face(score float64) DetectedFace {
	return DetectedFace{
		BBox:      []float64{10, 10, 50, 50},
		Embedding: []float32{1, 0, 0, 0},
		Landmarks: [][]float64{{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}},
		DetScore:  score,
	}
}

func TestEncodeReturnsFaces(t *testing.T) {
	server := fakeDetectServer(t, []DetectedFace{face(0.9), face(0.7)})
	defer server.Close()

	c := NewClient(server.URL, "arcface")
	faces, err := c.Encode(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("got %d faces, want 2", len(faces))
	}
	if len(faces[0].Landmarks) != 5 {
		t.Errorf("got %d landmarks, want 5", len(faces[0].Landmarks))
	}
}

func TestEncodeForEnrollment(t *testing.T) {
	tests := []struct {
		name    string
		faces   []DetectedFace
		wantErr error
	}{
		{"single good face", []DetectedFace{face(0.9)}, nil},
		{"no faces", nil, ErrNoFaceDetected},
		{"two usable faces", []DetectedFace{face(0.9), face(0.8)}, ErrAmbiguousFaces},
		{"single low-confidence face", []DetectedFace{face(0.2)}, ErrLowQuality},
		{"one good one weak", []DetectedFace{face(0.9), face(0.3)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := fakeDetectServer(t, tt.faces)
			defer server.Close()

			c := NewClient(server.URL, "")
			got, err := c.EncodeForEnrollment(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.DetScore < minEnrollScore {
				t.Errorf("returned face below floor: %f", got.DetScore)
			}
		})
	}
}

func TestEncodeForRecognitionPicksBest(t *testing.T) {
	server := fakeDetectServer(t, []DetectedFace{face(0.6), face(0.95), face(0.7)})
	defer server.Close()

	c := NewClient(server.URL, "")
	got, err := c.EncodeForRecognition(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
	if err != nil {
		t.Fatalf("EncodeForRecognition failed: %v", err)
	}
	if got.DetScore != 0.95 {
		t.Errorf("picked score %f, want 0.95", got.DetScore)
	}
}

func TestEncodeForRecognitionNoFace(t *testing.T) {
	server := fakeDetectServer(t, nil)
	defer server.Close()

	c := NewClient(server.URL, "")
	if _, err := c.EncodeForRecognition(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00}); !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("got %v, want ErrNoFaceDetected", err)
	}
}

func TestEncodeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	if _, err := c.Encode(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{1, 2}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrepareImageDownscales(t *testing.T) {
	// Encode a 2000x1000 JPEG; prepareImage should bring it under the cap.
	big := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, big, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}

	out, err := prepareImage(buf.Bytes())
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding prepared image: %v", err)
	}
	if w := decoded.Bounds().Dx(); w != maxUploadedSide {
		t.Errorf("width = %d, want %d", w, maxUploadedSide)
	}
	if h := decoded.Bounds().Dy(); h != maxUploadedSide/2 {
		t.Errorf("height = %d, want %d", h, maxUploadedSide/2)
	}
}

func TestPrepareImagePassthrough(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 80))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}

	out, err := prepareImage(buf.Bytes())
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	if !bytes.Equal(out, buf.Bytes()) {
		t.Error("small image should pass through unchanged")
	}

	// Undecodable bytes pass through too; the server may handle formats
	// the stdlib cannot.
	raw := []byte{1, 2, 3, 4}
	out, err = prepareImage(raw)
	if err != nil || !bytes.Equal(out, raw) {
		t.Errorf("undecodable input should pass through, got (%v, %v)", out, err)
	}
}
