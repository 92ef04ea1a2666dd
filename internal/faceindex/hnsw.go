package faceindex

import (
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// HNSWMatcher answers match queries from an HNSW graph instead of a full
// scan. It is approximate: at very large populations it may miss the true
// nearest record, so it is opt-in for installations where the linear scan
// becomes too slow. The graph is rebuilt from an index snapshot; Refresh
// must be called after enrollment changes.
type HNSWMatcher struct {
	index *Index

	QualityFloor float64

	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	records map[string]FaceRecord
}

// NewHNSWMatcher creates a matcher and builds the initial graph.
func NewHNSWMatcher(index *Index) *HNSWMatcher {
	m := &HNSWMatcher{index: index}
	m.Refresh()
	return m
}

// Refresh rebuilds the graph from the current index snapshot.
func (m *HNSWMatcher) Refresh() {
	snapshot := m.index.Snapshot()

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	records := make(map[string]FaceRecord, len(snapshot))
	for i := range snapshot {
		rec := snapshot[i]
		g.Add(hnsw.MakeNode(rec.IdentityID, rec.Embedding))
		records[rec.IdentityID] = rec
	}

	m.mu.Lock()
	m.graph = g
	m.records = records
	m.mu.Unlock()
}

// Count returns the number of records in the graph.
func (m *HNSWMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// FindBestMatch searches the graph for the nearest enrolled record and
// applies the same decision rule as the linear matcher. AllSimilarities only
// contains the returned neighbors, not the full population.
func (m *HNSWMatcher) FindBestMatch(probe []float32, threshold float64) RecognitionOutcome {
	start := time.Now()
	outcome := RecognitionOutcome{
		Status:        StatusNoMatch,
		ThresholdUsed: threshold,
	}

	if len(probe) != m.index.Dim() {
		outcome.Status = StatusError
		outcome.Reason = ErrDimensionMismatch.Error()
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}
	normalized, err := Normalize(probe)
	if err != nil {
		outcome.Status = StatusError
		outcome.Reason = err.Error()
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	outcome.CandidateCount = len(m.records)
	outcome.AllSimilarities = make(map[string]float64)
	if len(m.records) == 0 {
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}

	neighbors := m.graph.Search(normalized, 1)
	if len(neighbors) == 0 {
		outcome.ProcessingDuration = time.Since(start)
		return outcome
	}

	best := neighbors[0]
	sim := Dot(normalized, best.Value)
	outcome.AllSimilarities[best.Key] = sim
	outcome.Similarity = sim
	if sim >= threshold {
		outcome.Status = StatusSuccess
		outcome.MatchedIdentityID = best.Key
		if rec, ok := m.records[best.Key]; ok && m.QualityFloor > 0 && rec.QualityScore < m.QualityFloor {
			outcome.Status = StatusLowQuality
		}
	}

	outcome.ProcessingDuration = time.Since(start)
	return outcome
}
