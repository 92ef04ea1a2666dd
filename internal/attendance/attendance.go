// Package attendance records daily attendance marks. A person gets at most
// one mark per calendar day; the day boundary follows a configured timezone
// rather than the server clock.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/facegate/internal/store"
)

// Outcome says whether a mark call created a new row or found today's
// existing one.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyMarked Outcome = "already_marked"
)

// Result is the answer to a single Mark call. Mark is always the row that
// holds for the day, whether this call created it or not.
type Result struct {
	Outcome Outcome               `json:"outcome"`
	Mark    *store.AttendanceMark `json:"mark"`
}

// Coordinator turns recognition hits into daily attendance marks.
type Coordinator struct {
	marks     store.AttendanceStore
	directory store.DirectoryReader
	location  *time.Location
}

// NewCoordinator builds a coordinator that stamps marks in the given
// timezone, e.g. "Asia/Manila".
func NewCoordinator(marks store.AttendanceStore, directory store.DirectoryReader, timezone string) (*Coordinator, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading attendance timezone %q: %w", timezone, err)
	}

	return &Coordinator{
		marks:     marks,
		directory: directory,
		location:  loc,
	}, nil
}

// Location returns the timezone used for day boundaries.
func (c *Coordinator) Location() *time.Location {
	return c.location
}

// ScanDate converts an instant to the calendar day it belongs to.
func (c *Coordinator) ScanDate(at time.Time) string {
	return at.In(c.location).Format(store.DateLayout)
}

// Mark records attendance for an identity at the given instant. The first
// call of the day creates a row; later calls return the existing one. Two
// concurrent calls for the same identity and day resolve to a single row,
// with exactly one caller seeing OutcomeCreated.
func (c *Coordinator) Mark(ctx context.Context, identityID string, similarity float64, at time.Time) (*Result, error) {
	if identityID == "" {
		return nil, fmt.Errorf("empty identity id")
	}

	local := at.In(c.location)
	mark := store.AttendanceMark{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		ScanTime:   local,
		ScanDate:   local.Format(store.DateLayout),
		Status:     "present",
		Similarity: similarity,
	}

	if c.directory != nil {
		identity, err := c.directory.GetIdentity(ctx, identityID)
		if err != nil {
			return nil, fmt.Errorf("resolving identity %s: %w", identityID, err)
		}
		if identity != nil {
			mark.FirstName = identity.FirstName
			mark.LastName = identity.LastName
			mark.Email = identity.Email
			mark.UserType = identity.UserType
			mark.Company = identity.CompanyName
			mark.JobTitle = identity.JobTitle
		}
	}

	created, existing, err := c.marks.CreateMark(ctx, mark)
	if err != nil {
		return nil, fmt.Errorf("creating attendance mark: %w", err)
	}
	if created {
		return &Result{Outcome: OutcomeCreated, Mark: &mark}, nil
	}
	return &Result{Outcome: OutcomeAlreadyMarked, Mark: existing}, nil
}

// HasMark reports whether the identity already has a mark for the day
// containing the given instant.
func (c *Coordinator) HasMark(ctx context.Context, identityID string, at time.Time) (bool, error) {
	return c.marks.HasMark(ctx, identityID, c.ScanDate(at))
}

// List returns marks matching the filter, newest first.
func (c *Coordinator) List(ctx context.Context, filter store.AttendanceFilter) ([]store.AttendanceMark, error) {
	return c.marks.ListMarks(ctx, filter)
}

// Count returns the number of marks for the given calendar day.
func (c *Coordinator) Count(ctx context.Context, scanDate string) (int, error) {
	return c.marks.CountMarks(ctx, scanDate)
}
