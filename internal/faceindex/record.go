// Package faceindex implements the in-memory store of enrolled face embeddings
// and the matching engine that decides whether a probe vector belongs to one of
// the enrolled identities.
package faceindex

import (
	"errors"
	"math"
	"time"
)

// EmbeddingDim is the fixed embedding length produced by the face model.
const EmbeddingDim = 512

var (
	// ErrInvalidEmbedding is returned for empty or zero-magnitude vectors.
	ErrInvalidEmbedding = errors.New("invalid embedding vector")
	// ErrDimensionMismatch is returned when a vector has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNotFound is returned when an identity has no enrolled record.
	ErrNotFound = errors.New("identity not found")
)

// RecordSource tags where an enrolled embedding came from.
type RecordSource string

const (
	SourceAPI    RecordSource = "api"
	SourceSync   RecordSource = "sync"
	SourceManual RecordSource = "manual"
)

// FaceRecord is one enrolled identity's embedding plus detection metadata.
// The embedding is always stored L2-normalized so cosine similarity against
// a normalized probe reduces to a dot product.
type FaceRecord struct {
	IdentityID   string
	Embedding    []float32
	Confidence   float64
	QualityScore float64
	Source       RecordSource
	SourceURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RecordMeta carries the caller-supplied metadata for an upsert.
type RecordMeta struct {
	Confidence   float64
	QualityScore float64
	Source       RecordSource
	SourceURL    string
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. The input is never mutated, so
// callers can keep their buffer. Returns ErrInvalidEmbedding for empty or
// zero vectors, which cannot be normalized.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, ErrInvalidEmbedding
	}
	norm := Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrInvalidEmbedding
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Dot computes the dot product of two vectors of equal length. For two
// normalized vectors this equals their cosine similarity. The result is
// clamped to [-1, 1] to absorb floating point error.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	if sum > 1 {
		sum = 1
	}
	if sum < -1 {
		sum = -1
	}
	return sum
}

// CosineSimilarity computes the cosine similarity between two vectors of any
// scale. Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// clone returns a deep copy of the record so snapshot consumers can never
// observe later mutations.
func (r *FaceRecord) clone() FaceRecord {
	cp := *r
	cp.Embedding = make([]float32, len(r.Embedding))
	copy(cp.Embedding, r.Embedding)
	return cp
}
