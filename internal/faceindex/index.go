package faceindex

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// indexState is one immutable generation of the index. Readers grab the
// current state pointer and work on it without locking; writers build a new
// state and publish it with a single atomic store.
type indexState struct {
	records map[string]*FaceRecord
	order   []string // identity IDs sorted lexicographically
}

func emptyState() *indexState {
	return &indexState{records: make(map[string]*FaceRecord)}
}

// Index is the in-memory mapping from identity ID to enrolled FaceRecord.
// It is the single source of truth for the matching engine and is safe for
// concurrent use: reads never block, writes serialize under a mutex.
type Index struct {
	dim   int
	mu    sync.Mutex // guards writers
	state atomic.Pointer[indexState]
	dirty atomic.Bool
}

// New creates an empty index for embeddings of the given dimension.
func New(dim int) *Index {
	if dim <= 0 {
		dim = EmbeddingDim
	}
	idx := &Index{dim: dim}
	idx.state.Store(emptyState())
	return idx
}

// Dim returns the fixed embedding dimension enforced on every insert.
func (idx *Index) Dim() int {
	return idx.dim
}

// validate normalizes the candidate embedding, rejecting wrong-length and
// degenerate vectors before any state is touched.
func (idx *Index) validate(embedding []float32) ([]float32, error) {
	if len(embedding) != idx.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), idx.dim)
	}
	normalized, err := Normalize(embedding)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// Upsert validates and normalizes the embedding, then replaces any existing
// record for the identity. The swap is all-or-nothing: on a validation error
// the prior record is untouched. Returns a copy of the stored record.
func (idx *Index) Upsert(identityID string, embedding []float32, meta RecordMeta) (*FaceRecord, error) {
	if identityID == "" {
		return nil, fmt.Errorf("%w: empty identity id", ErrInvalidEmbedding)
	}
	normalized, err := idx.validate(embedding)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &FaceRecord{
		IdentityID:   identityID,
		Embedding:    normalized,
		Confidence:   meta.Confidence,
		QualityScore: meta.QualityScore,
		Source:       meta.Source,
		SourceURL:    meta.SourceURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.state.Load()
	if prev, ok := cur.records[identityID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	next := cloneStateWith(cur, rec)
	idx.state.Store(next)
	idx.dirty.Store(true)

	cp := rec.clone()
	return &cp, nil
}

// Remove deletes the record for the identity. Returns false (not an error)
// if the identity was not enrolled.
func (idx *Index) Remove(identityID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.state.Load()
	if _, ok := cur.records[identityID]; !ok {
		return false
	}
	next := cloneStateWithout(cur, identityID)
	idx.state.Store(next)
	idx.dirty.Store(true)
	return true
}

// Get returns a copy of the record for the identity or ErrNotFound.
func (idx *Index) Get(identityID string) (*FaceRecord, error) {
	cur := idx.state.Load()
	rec, ok := cur.records[identityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identityID)
	}
	cp := rec.clone()
	return &cp, nil
}

// Has reports whether the identity is enrolled.
func (idx *Index) Has(identityID string) bool {
	_, ok := idx.state.Load().records[identityID]
	return ok
}

// Snapshot returns a point-in-time copy of all records, ordered by identity
// ID. The copy is safe to iterate without any lock and never observes later
// mutations; it is what the match engine scans and the persistence layer
// serializes.
func (idx *Index) Snapshot() []FaceRecord {
	cur := idx.state.Load()
	out := make([]FaceRecord, 0, len(cur.order))
	for _, id := range cur.order {
		out = append(out, cur.records[id].clone())
	}
	return out
}

// IdentityIDs returns the enrolled identity IDs in snapshot order.
func (idx *Index) IdentityIDs() []string {
	cur := idx.state.Load()
	out := make([]string, len(cur.order))
	copy(out, cur.order)
	return out
}

// Size returns the number of enrolled identities.
func (idx *Index) Size() int {
	return len(idx.state.Load().records)
}

// Replace swaps the entire index contents in a single atomic update. Records
// are validated and normalized first; any invalid record fails the whole call
// and leaves the current state untouched. Used when loading a snapshot from
// disk and by forced resyncs.
func (idx *Index) Replace(records []FaceRecord) error {
	next := emptyState()
	for i := range records {
		rec := records[i]
		normalized, err := idx.validate(rec.Embedding)
		if err != nil {
			return fmt.Errorf("record %q: %w", rec.IdentityID, err)
		}
		rec.Embedding = normalized
		next.records[rec.IdentityID] = &rec
	}
	next.order = sortedIDs(next.records)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.state.Store(next)
	idx.dirty.Store(true)
	return nil
}

// Dirty reports whether the index has mutated since the last ClearDirty.
// The persistence cycle uses it to skip no-op saves.
func (idx *Index) Dirty() bool {
	return idx.dirty.Load()
}

// ClearDirty resets the dirty flag, typically right after a successful save.
func (idx *Index) ClearDirty() {
	idx.dirty.Store(false)
}

func sortedIDs(records map[string]*FaceRecord) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// cloneStateWith copies the state and inserts or replaces one record.
func cloneStateWith(cur *indexState, rec *FaceRecord) *indexState {
	next := &indexState{records: make(map[string]*FaceRecord, len(cur.records)+1)}
	for id, r := range cur.records {
		next.records[id] = r
	}
	next.records[rec.IdentityID] = rec
	next.order = sortedIDs(next.records)
	return next
}

// cloneStateWithout copies the state and drops one record.
func cloneStateWithout(cur *indexState, identityID string) *indexState {
	next := &indexState{records: make(map[string]*FaceRecord, len(cur.records))}
	for id, r := range cur.records {
		if id == identityID {
			continue
		}
		next.records[id] = r
	}
	next.order = sortedIDs(next.records)
	return next
}
