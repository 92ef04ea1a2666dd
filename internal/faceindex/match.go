package faceindex

import (
	"fmt"
	"time"
)

// MatchStatus classifies the outcome of a match attempt.
type MatchStatus string

const (
	StatusSuccess    MatchStatus = "success"
	StatusNoMatch    MatchStatus = "no_match"
	StatusLowQuality MatchStatus = "low_quality"
	StatusError      MatchStatus = "error"
)

// RecognitionOutcome is the transient result of a single match attempt.
type RecognitionOutcome struct {
	MatchedIdentityID  string             `json:"matched_identity_id,omitempty"`
	Similarity         float64            `json:"similarity"`
	ThresholdUsed      float64            `json:"threshold_used"`
	CandidateCount     int                `json:"candidate_count"`
	Status             MatchStatus        `json:"status"`
	Reason             string             `json:"reason,omitempty"`
	AllSimilarities    map[string]float64 `json:"all_similarities,omitempty"`
	ProcessingDuration time.Duration      `json:"processing_duration_ns"`
}

// Matcher finds the best enrolled identity for a probe vector. The linear
// matcher is the reference implementation; the HNSW matcher trades its
// exactness guarantee for sub-linear search and can be swapped in without
// touching callers.
type Matcher interface {
	FindBestMatch(probe []float32, threshold float64) RecognitionOutcome
}

// LinearMatcher scans every enrolled record and computes the exact cosine
// similarity against the probe. O(n*d), which is fine for populations in the
// hundreds to low thousands, and it can never produce an approximation false
// negative.
type LinearMatcher struct {
	index *Index

	// QualityFloor downgrades a successful match to low_quality when the
	// matched record's stored quality score falls below it. Zero disables
	// the gate.
	QualityFloor float64
}

// NewLinearMatcher creates a matcher over the given index.
func NewLinearMatcher(index *Index) *LinearMatcher {
	return &LinearMatcher{index: index}
}

// FindBestMatch validates and normalizes the probe, scans a snapshot of the
// index and applies the threshold decision rule. Ties break toward the first
// record in snapshot order, which is deterministic for a fixed snapshot.
func (m *LinearMatcher) FindBestMatch(probe []float32, threshold float64) RecognitionOutcome {
	start := time.Now()
	outcome := RecognitionOutcome{
		Status:        StatusNoMatch,
		ThresholdUsed: threshold,
	}

	if len(probe) != m.index.Dim() {
		outcome.Status = StatusError
		outcome.Reason = fmt.Sprintf("%v: got %d, want %d", ErrDimensionMismatch, len(probe), m.index.Dim())
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}

	// The match is scale-invariant, so normalize regardless of input.
	normalized, err := Normalize(probe)
	if err != nil {
		outcome.Status = StatusError
		outcome.Reason = err.Error()
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}

	snapshot := m.index.Snapshot()
	outcome.CandidateCount = len(snapshot)
	outcome.AllSimilarities = make(map[string]float64, len(snapshot))
	if len(snapshot) == 0 {
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}

	best := -1
	bestSim := -2.0
	for i := range snapshot {
		// Stored embeddings are already normalized, so the dot product
		// is exactly the cosine similarity.
		sim := Dot(normalized, snapshot[i].Embedding)
		outcome.AllSimilarities[snapshot[i].IdentityID] = sim
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}

	outcome.Similarity = bestSim
	if bestSim >= threshold {
		outcome.Status = StatusSuccess
		outcome.MatchedIdentityID = snapshot[best].IdentityID
		if m.QualityFloor > 0 && snapshot[best].QualityScore < m.QualityFloor {
			outcome.Status = StatusLowQuality
			outcome.Reason = fmt.Sprintf("stored quality %.2f below floor %.2f",
				snapshot[best].QualityScore, m.QualityFloor)
		}
	}

	outcome.ProcessingDuration = time.Since(start)
	return outcome
}
