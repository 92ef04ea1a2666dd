package store

import "context"

// DirectoryReader lists the identity roster the face index is reconciled
// against.
type DirectoryReader interface {
	// ListIdentities returns all identities with their face-image references.
	ListIdentities(ctx context.Context) ([]Identity, error)
	// GetIdentity returns one identity, or nil if unknown.
	GetIdentity(ctx context.Context, identityID string) (*Identity, error)
}

// ProfileWriter persists per-identity embeddings and landmarks in the store.
type ProfileWriter interface {
	// SaveProfile inserts or replaces the face profile for an identity.
	SaveProfile(ctx context.Context, profile FaceProfile) error
	// DeleteProfile removes the profile; deleting an absent profile is not
	// an error.
	DeleteProfile(ctx context.Context, identityID string) error
}

// EnrollmentLogger records per-identity enrollment outcomes during sync.
type EnrollmentLogger interface {
	LogEnrollment(ctx context.Context, entry EnrollmentLogEntry) error
}

// AttendanceStore negotiates daily attendance marks. The backing store is
// the authority for the one-mark-per-identity-per-day rule, typically via a
// unique constraint, so concurrent service instances stay consistent.
type AttendanceStore interface {
	// CreateMark conditionally inserts the mark. If a mark for the same
	// (identity, scan date) already exists, created is false and existing
	// holds the persisted record.
	CreateMark(ctx context.Context, mark AttendanceMark) (created bool, existing *AttendanceMark, err error)
	// HasMark reports whether the identity already has a mark for the day.
	HasMark(ctx context.Context, identityID, scanDate string) (bool, error)
	// ListMarks returns marks matching the filter, most recent first.
	ListMarks(ctx context.Context, filter AttendanceFilter) ([]AttendanceMark, error)
	// CountMarks returns the number of marks for a day.
	CountMarks(ctx context.Context, scanDate string) (int, error)
}
