// Package store defines the interfaces and types for the external identity
// directory and attendance store. The core never owns this data; it reads the
// identity roster from it and negotiates attendance marks against it.
package store

import (
	"errors"
	"time"
)

// ErrExternalStore wraps connectivity and constraint failures of the
// directory/attendance backend.
var ErrExternalStore = errors.New("external store error")

// DateLayout is the wire format for attendance days.
const DateLayout = "2006-01-02"

// Identity is one enrolled subject in the external directory.
type Identity struct {
	ID           string
	FirstName    string
	LastName     string
	MiddleName   string
	Email        string
	UserType     string
	CompanyName  string
	JobTitle     string
	FaceImageURL string
	Status       string
}

// DisplayName returns "First Last" with empty parts dropped.
func (i Identity) DisplayName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}

// FaceProfile is the per-identity embedding record persisted in the store,
// alongside the landmark geometry the encoder reported.
type FaceProfile struct {
	IdentityID string
	Embedding  []float32
	Landmarks  [][]float64 // five points, [x y] each
	DetScore   float64
	Model      string
	Dim        int
	UpdatedAt  time.Time
}

// AttendanceMark is one daily attendance record, logically keyed by
// (IdentityID, ScanDate). The store enforces the uniqueness.
type AttendanceMark struct {
	ID         string
	IdentityID string
	FirstName  string
	LastName   string
	Email      string
	UserType   string
	Company    string
	JobTitle   string
	ScanTime   time.Time
	ScanDate   string // DateLayout in the attendance time zone
	Status     string
	Similarity float64
}

// AttendanceFilter narrows ListMarks results. Zero values mean "any".
type AttendanceFilter struct {
	Date     string
	UserType string
	Status   string
	Company  string
}

// EnrollmentLogEntry records the outcome of one enrollment attempt during a
// sync pass, success or failure.
type EnrollmentLogEntry struct {
	IdentityID string
	Success    bool
	Reason     string
	Source     string
	CreatedAt  time.Time
}
