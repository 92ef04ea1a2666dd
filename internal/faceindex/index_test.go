package faceindex

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	return New(4)
}

func TestIndexUpsert(t *testing.T) {
	idx := testIndex(t)

	rec, err := idx.Upsert("u1", []float32{2, 0, 0, 0}, RecordMeta{Source: SourceAPI, Confidence: 0.9})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.IdentityID != "u1" {
		t.Errorf("unexpected identity: %s", rec.IdentityID)
	}
	// Stored embedding must be normalized regardless of input scale.
	if norm := Norm(rec.Embedding); math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("stored embedding not normalized: norm=%f", norm)
	}
	if idx.Size() != 1 {
		t.Errorf("size = %d, want 1", idx.Size())
	}
	if !idx.Dirty() {
		t.Error("index should be dirty after upsert")
	}
}

func TestIndexUpsertReplaces(t *testing.T) {
	idx := testIndex(t)

	first, err := idx.Upsert("u1", []float32{1, 0, 0, 0}, RecordMeta{})
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	second, err := idx.Upsert("u1", []float32{0, 1, 0, 0}, RecordMeta{})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("size = %d, want 1 after replacing", idx.Size())
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("CreatedAt should survive a replace")
	}
	got, err := idx.Get("u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Embedding[1] != 1 {
		t.Errorf("record not replaced: %v", got.Embedding)
	}
}

func TestIndexUpsertValidation(t *testing.T) {
	idx := testIndex(t)
	if _, err := idx.Upsert("seed", []float32{1, 0, 0, 0}, RecordMeta{}); err != nil {
		t.Fatalf("seed Upsert failed: %v", err)
	}

	tests := []struct {
		name      string
		id        string
		embedding []float32
		wantErr   error
	}{
		{"too short", "seed", []float32{1, 0}, ErrDimensionMismatch},
		{"too long", "seed", []float32{1, 0, 0, 0, 0}, ErrDimensionMismatch},
		{"zero vector", "seed", []float32{0, 0, 0, 0}, ErrInvalidEmbedding},
		{"empty id", "", []float32{1, 0, 0, 0}, ErrInvalidEmbedding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := idx.Upsert(tt.id, tt.embedding, RecordMeta{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	// A failed upsert must leave the prior record untouched.
	got, err := idx.Get("seed")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Embedding[0] != 1 {
		t.Errorf("prior record was modified: %v", got.Embedding)
	}
}

func TestIndexRemove(t *testing.T) {
	idx := testIndex(t)
	if _, err := idx.Upsert("u1", []float32{1, 0, 0, 0}, RecordMeta{}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if !idx.Remove("u1") {
		t.Error("Remove should return true for an existing record")
	}
	if idx.Remove("u1") {
		t.Error("Remove should return false for an absent record")
	}
	if _, err := idx.Get("u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexSnapshotOrderAndIsolation(t *testing.T) {
	idx := testIndex(t)
	for _, id := range []string{"u3", "u1", "u2"} {
		if _, err := idx.Upsert(id, []float32{1, 0, 0, 0}, RecordMeta{}); err != nil {
			t.Fatalf("Upsert %s failed: %v", id, err)
		}
	}

	snap := idx.Snapshot()
	want := []string{"u1", "u2", "u3"}
	for i, rec := range snap {
		if rec.IdentityID != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, rec.IdentityID, want[i])
		}
	}

	// Mutations after the snapshot must not be visible in it.
	idx.Remove("u2")
	snap[0].Embedding[0] = 42
	if len(snap) != 3 {
		t.Errorf("snapshot len changed to %d", len(snap))
	}
	fresh, err := idx.Get("u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fresh.Embedding[0] == 42 {
		t.Error("mutating a snapshot leaked into the index")
	}
}

func TestIndexReplace(t *testing.T) {
	idx := testIndex(t)
	if _, err := idx.Upsert("old", []float32{1, 0, 0, 0}, RecordMeta{}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	err := idx.Replace([]FaceRecord{
		{IdentityID: "a", Embedding: []float32{0, 1, 0, 0}},
		{IdentityID: "b", Embedding: []float32{0, 0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if idx.Size() != 2 || idx.Has("old") {
		t.Errorf("replace did not swap contents, size=%d", idx.Size())
	}

	// An invalid record fails the whole call and keeps the current state.
	err = idx.Replace([]FaceRecord{{IdentityID: "bad", Embedding: []float32{1, 0}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension error, got %v", err)
	}
	if idx.Size() != 2 {
		t.Errorf("failed replace mutated index, size=%d", idx.Size())
	}
}

func TestIndexConcurrentAccess(t *testing.T) {
	idx := New(EmbeddingDim)
	embedding := make([]float32, EmbeddingDim)
	embedding[0] = 1

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("u%d-%d", n, j)
				if _, err := idx.Upsert(id, embedding, RecordMeta{}); err != nil {
					t.Errorf("Upsert failed: %v", err)
					return
				}
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = idx.Snapshot()
				_ = idx.Size()
			}
		}()
	}
	wg.Wait()

	if idx.Size() != 8*50 {
		t.Errorf("size = %d, want %d", idx.Size(), 8*50)
	}
}
