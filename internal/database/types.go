// Package database defines the storage types and interfaces for identities,
// reference face embeddings and attendance records, plus the in-memory HNSW
// index used as a fast path for similarity search.
package database

import (
	"errors"
	"time"
)

// Storage-level sentinel errors. Services translate these into their own
// user-facing responses.
var (
	// ErrIdentityExists is returned when creating an identity whose ID is taken.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotFound is returned when an identity ID is not enrolled.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrDuplicateForDay is returned when an identity already has an
	// attendance record for the session date.
	ErrDuplicateForDay = errors.New("attendance already recorded for this day")
)

// Identity is an enrolled person.
type Identity struct {
	ID        string
	FullName  string
	GroupName string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredReferenceFace is one reference face embedding stored in the database.
// ImagePath points at the gallery image the embedding was computed from; the
// resolver maps it back to the owning identity structurally.
type StoredReferenceFace struct {
	ID         int64
	IdentityID string
	ImagePath  string
	Embedding  []float32
	Model      string
	Dim        int
	CreatedAt  time.Time
}

// Attendance record status values.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)

// AttendanceRecord is one check-in. The (IdentityID, SessionDate) pair is
// unique: a person checks in at most once per day.
type AttendanceRecord struct {
	ID          int64
	UID         string
	IdentityID  string
	FullName    string // joined from identities for reports, not stored
	SessionDate time.Time
	CheckInTime time.Time
	Confidence  float64
	Distance    float64
	ModelUsed   string
	Status      string
	Notes       string
}
