package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/facegate/internal/store"
	"github.com/example/facegate/internal/store/mock"
)

func newTestCoordinator(t *testing.T, s *mock.Store) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(s, s, "Asia/Manila")
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return c
}

func TestNewCoordinatorInvalidTimezone(t *testing.T) {
	if _, err := NewCoordinator(mock.New(), nil, "Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestMarkCreatesOncePerDay(t *testing.T) {
	s := mock.New()
	s.AddIdentity(store.Identity{ID: "u1", FirstName: "Ana", LastName: "Cruz", UserType: "student"})
	c := newTestCoordinator(t, s)

	at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	first, err := c.Mark(context.Background(), "u1", 0.91, at)
	if err != nil {
		t.Fatalf("first Mark failed: %v", err)
	}
	if first.Outcome != OutcomeCreated {
		t.Fatalf("first outcome = %s, want created", first.Outcome)
	}
	if first.Mark.FirstName != "Ana" || first.Mark.UserType != "student" {
		t.Errorf("mark missing identity details: %+v", first.Mark)
	}
	if first.Mark.ID == "" {
		t.Error("created mark has no id")
	}

	second, err := c.Mark(context.Background(), "u1", 0.85, at.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second Mark failed: %v", err)
	}
	if second.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("second outcome = %s, want already_marked", second.Outcome)
	}
	if second.Mark.ID != first.Mark.ID {
		t.Error("repeat mark should return the original row")
	}
	if second.Mark.Similarity != 0.91 {
		t.Errorf("existing mark similarity = %f, want the original 0.91", second.Mark.Similarity)
	}
}

func TestMarkDayBoundaryFollowsTimezone(t *testing.T) {
	s := mock.New()
	s.AddIdentity(store.Identity{ID: "u1"})
	c := newTestCoordinator(t, s)

	// 17:30 UTC is already 01:30 the next day in Manila (UTC+8).
	at := time.Date(2026, 3, 5, 17, 30, 0, 0, time.UTC)
	res, err := c.Mark(context.Background(), "u1", 0.9, at)
	if err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if res.Mark.ScanDate != "2026-03-06" {
		t.Errorf("scan date = %s, want 2026-03-06", res.Mark.ScanDate)
	}

	// A scan earlier the same UTC day lands on the previous Manila day,
	// so it creates a second, separate mark.
	res2, err := c.Mark(context.Background(), "u1", 0.9, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if res2.Outcome != OutcomeCreated {
		t.Errorf("outcome = %s, want created for different local day", res2.Outcome)
	}
	if res2.Mark.ScanDate != "2026-03-05" {
		t.Errorf("scan date = %s, want 2026-03-05", res2.Mark.ScanDate)
	}
}

func TestMarkConcurrentSameDay(t *testing.T) {
	s := mock.New()
	s.AddIdentity(store.Identity{ID: "u1"})
	c := newTestCoordinator(t, s)

	at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	const workers = 16
	results := make([]*Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Mark(context.Background(), "u1", 0.9, at)
			if err != nil {
				t.Errorf("Mark failed: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		if res != nil && res.Outcome == OutcomeCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("%d callers saw created, want exactly 1", created)
	}

	marks, err := c.List(context.Background(), store.AttendanceFilter{Date: "2026-03-05"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(marks) != 1 {
		t.Errorf("%d rows for the day, want 1", len(marks))
	}
}

func TestMarkEmptyIdentity(t *testing.T) {
	c := newTestCoordinator(t, mock.New())
	if _, err := c.Mark(context.Background(), "", 0.9, time.Now()); err == nil {
		t.Fatal("expected error for empty identity id")
	}
}

func TestMarkStoreError(t *testing.T) {
	s := mock.New()
	s.AddIdentity(store.Identity{ID: "u1"})
	s.CreateMarkError = errors.New("connection refused")
	c := newTestCoordinator(t, s)

	if _, err := c.Mark(context.Background(), "u1", 0.9, time.Now()); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestHasMark(t *testing.T) {
	s := mock.New()
	s.AddIdentity(store.Identity{ID: "u1"})
	c := newTestCoordinator(t, s)

	at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	has, err := c.HasMark(context.Background(), "u1", at)
	if err != nil {
		t.Fatalf("HasMark failed: %v", err)
	}
	if has {
		t.Error("HasMark = true before marking")
	}

	if _, err := c.Mark(context.Background(), "u1", 0.9, at); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	has, err = c.HasMark(context.Background(), "u1", at)
	if err != nil {
		t.Fatalf("HasMark failed: %v", err)
	}
	if !has {
		t.Error("HasMark = false after marking")
	}
}
