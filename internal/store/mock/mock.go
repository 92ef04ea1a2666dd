// Package mock provides in-memory implementations of the store interfaces
// for testing.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/example/facegate/internal/store"
)

// Store implements every store interface against in-process maps. The
// conditional-insert semantics of CreateMark match the real backend: under a
// single mutex, exactly one of two racing calls for the same (identity, day)
// wins.
type Store struct {
	mu         sync.Mutex
	identities map[string]store.Identity
	idOrder    []string
	profiles   map[string]store.FaceProfile
	marks      map[string]store.AttendanceMark // key: identityID + "|" + scanDate
	log        []store.EnrollmentLogEntry

	// Error injection
	ListIdentitiesError error
	SaveProfileError    error
	CreateMarkError     error
	ListMarksError      error
}

// New creates an empty mock store.
func New() *Store {
	return &Store{
		identities: make(map[string]store.Identity),
		profiles:   make(map[string]store.FaceProfile),
		marks:      make(map[string]store.AttendanceMark),
	}
}

// AddIdentity seeds the directory roster.
func (s *Store) AddIdentity(id store.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[id.ID]; !ok {
		s.idOrder = append(s.idOrder, id.ID)
	}
	s.identities[id.ID] = id
}

// RemoveIdentity drops an identity from the roster.
func (s *Store) RemoveIdentity(identityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.identities, identityID)
	for i, id := range s.idOrder {
		if id == identityID {
			s.idOrder = append(s.idOrder[:i], s.idOrder[i+1:]...)
			break
		}
	}
}

// ListIdentities returns the roster in insertion order.
func (s *Store) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	if s.ListIdentitiesError != nil {
		return nil, s.ListIdentitiesError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Identity, 0, len(s.idOrder))
	for _, id := range s.idOrder {
		out = append(out, s.identities[id])
	}
	return out, nil
}

// GetIdentity returns the identity or nil.
func (s *Store) GetIdentity(ctx context.Context, identityID string) (*store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[identityID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// SaveProfile stores the profile.
func (s *Store) SaveProfile(ctx context.Context, profile store.FaceProfile) error {
	if s.SaveProfileError != nil {
		return s.SaveProfileError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.IdentityID] = profile
	return nil
}

// DeleteProfile removes the profile if present.
func (s *Store) DeleteProfile(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, identityID)
	return nil
}

// Profile returns the stored profile for assertions.
func (s *Store) Profile(identityID string) (store.FaceProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[identityID]
	return p, ok
}

// LogEnrollment appends the entry.
func (s *Store) LogEnrollment(ctx context.Context, entry store.EnrollmentLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, entry)
	return nil
}

// EnrollmentLog returns a copy of the log for assertions.
func (s *Store) EnrollmentLog() []store.EnrollmentLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.EnrollmentLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

func markKey(identityID, scanDate string) string {
	return identityID + "|" + scanDate
}

// CreateMark conditionally inserts the mark, first writer wins.
func (s *Store) CreateMark(ctx context.Context, mark store.AttendanceMark) (bool, *store.AttendanceMark, error) {
	if s.CreateMarkError != nil {
		return false, nil, s.CreateMarkError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := markKey(mark.IdentityID, mark.ScanDate)
	if existing, ok := s.marks[key]; ok {
		cp := existing
		return false, &cp, nil
	}
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	s.marks[key] = mark
	return true, nil, nil
}

// HasMark reports whether the mark exists.
func (s *Store) HasMark(ctx context.Context, identityID, scanDate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.marks[markKey(identityID, scanDate)]
	return ok, nil
}

// ListMarks returns marks matching the filter.
func (s *Store) ListMarks(ctx context.Context, filter store.AttendanceFilter) ([]store.AttendanceMark, error) {
	if s.ListMarksError != nil {
		return nil, s.ListMarksError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AttendanceMark
	for _, m := range s.marks {
		if filter.Date != "" && m.ScanDate != filter.Date {
			continue
		}
		if filter.UserType != "" && m.UserType != filter.UserType {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.Company != "" && store.NormalizeName(m.Company) != store.NormalizeName(filter.Company) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// CountMarks returns the number of marks for the day.
func (s *Store) CountMarks(ctx context.Context, scanDate string) (int, error) {
	marks, err := s.ListMarks(ctx, store.AttendanceFilter{Date: scanDate})
	if err != nil {
		return 0, err
	}
	return len(marks), nil
}
