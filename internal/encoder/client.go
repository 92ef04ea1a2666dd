// Package encoder is the client for the face model server, the external
// collaborator that turns image bytes into face detections with embeddings
// and landmarks. The core never runs model inference itself.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	defaultEncoderURL   = "http://localhost:8000"
	defaultEncoderModel = "arcface" // model name for reference only
)

var (
	// ErrNoFaceDetected means the encoder found zero faces in the image.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrAmbiguousFaces means an enrollment image contained more than one
	// usable face, so there is no way to tell which one to enroll.
	ErrAmbiguousFaces = errors.New("multiple faces detected")
	// ErrLowQuality means the best detection fell below the confidence
	// floor.
	ErrLowQuality = errors.New("detection confidence too low")
)

// DetectedFace is one face found by the encoder.
type DetectedFace struct {
	FaceIndex int         `json:"face_index"`
	BBox      []float64   `json:"bbox"` // [x1, y1, x2, y2] in pixels
	Embedding []float32   `json:"embedding"`
	Landmarks [][]float64 `json:"landmarks"` // five points, [x y] each
	DetScore  float64     `json:"det_score"`
	Age       int         `json:"age,omitempty"`
	Gender    string      `json:"gender,omitempty"`
}

// detectResponse is the encoder's wire format.
type detectResponse struct {
	FacesCount int            `json:"faces_count"`
	Faces      []DetectedFace `json:"faces"`
	Model      string         `json:"model"`
	Dim        int            `json:"dim"`
}

// Client talks to the face model server over HTTP.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an encoder client.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultEncoderURL
	}
	if model == "" {
		model = defaultEncoderModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// Model returns the model name being used.
func (c *Client) Model() string {
	return c.model
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Encode detects faces in the image and returns their embeddings, zero or
// more. Oversized images are downscaled before upload to keep request sizes
// bounded; the model server re-detects at its own input resolution anyway.
func (c *Client) Encode(ctx context.Context, imageData []byte) ([]DetectedFace, error) {
	prepared, err := prepareImage(imageData)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/detect", prepared)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Faces, nil
}

// minEnrollScore is the detection confidence floor for enrollment images.
const minEnrollScore = 0.5

// EncodeForEnrollment applies the exactly-one-usable-face policy: zero faces
// is ErrNoFaceDetected, more than one face above the confidence floor is
// ErrAmbiguousFaces, and a single face below the floor is ErrLowQuality.
func (c *Client) EncodeForEnrollment(ctx context.Context, imageData []byte) (*DetectedFace, error) {
	faces, err := c.Encode(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	usable := faces[:0:0]
	for _, f := range faces {
		if f.DetScore >= minEnrollScore {
			usable = append(usable, f)
		}
	}
	switch {
	case len(usable) == 0:
		return nil, fmt.Errorf("%w: best score %.2f", ErrLowQuality, bestScore(faces))
	case len(usable) > 1:
		return nil, fmt.Errorf("%w: %d usable faces", ErrAmbiguousFaces, len(usable))
	}
	face := usable[0]
	return &face, nil
}

// EncodeForRecognition requires at least one face and returns the detection
// with the highest confidence, the way the original attendance kiosk picks
// the dominant face in the frame.
func (c *Client) EncodeForRecognition(ctx context.Context, imageData []byte) (*DetectedFace, error) {
	faces, err := c.Encode(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	return &best, nil
}

func bestScore(faces []DetectedFace) float64 {
	var best float64
	for _, f := range faces {
		if f.DetScore > best {
			best = f.DetScore
		}
	}
	return best
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
