package database

import (
	"context"
	"time"
)

// IdentityStore provides access to enrolled identities.
type IdentityStore interface {
	// Create stores a new identity, returning ErrIdentityExists on an ID clash.
	Create(ctx context.Context, identity *Identity) error
	// Get retrieves an identity by ID, returning ErrIdentityNotFound if missing.
	Get(ctx context.Context, id string) (*Identity, error)
	// List returns all identities ordered by ID.
	List(ctx context.Context) ([]Identity, error)
	// Update rewrites an identity's mutable fields, returning
	// ErrIdentityNotFound if missing.
	Update(ctx context.Context, identity *Identity) error
	// Delete removes an identity together with its reference faces.
	Delete(ctx context.Context, id string) error
	// Exists checks whether an identity ID is enrolled.
	Exists(ctx context.Context, id string) (bool, error)
	// SearchByName finds identities whose full name matches after
	// normalization (lowercase, no diacritics, dashes to spaces).
	SearchByName(ctx context.Context, name string) ([]Identity, error)
}

// ReferenceFaceReader provides read-only access to reference face embeddings.
type ReferenceFaceReader interface {
	// Count returns the number of stored reference faces for a model.
	Count(ctx context.Context, model string) (int, error)
	// GetByIdentity retrieves an identity's reference faces for a model.
	GetByIdentity(ctx context.Context, identityID, model string) ([]StoredReferenceFace, error)
	// FindSimilarWithDistance finds the closest reference faces for a model
	// by cosine distance, ascending, capped at maxDistance.
	FindSimilarWithDistance(ctx context.Context, embedding []float32, model string, limit int, maxDistance float64) ([]StoredReferenceFace, []float64, error)
}

// ReferenceFaceWriter provides write access to reference face embeddings.
type ReferenceFaceWriter interface {
	ReferenceFaceReader

	// Save stores a reference face embedding, replacing any existing
	// embedding for the same image path and model.
	Save(ctx context.Context, face *StoredReferenceFace) error
	// DeleteByIdentity removes all reference faces for an identity.
	// Returns the deleted face IDs for HNSW cleanup.
	DeleteByIdentity(ctx context.Context, identityID string) ([]int64, error)
}

// AttendanceStore provides access to attendance records.
type AttendanceStore interface {
	// RecordCheckIn stores a check-in. Returns ErrDuplicateForDay when the
	// identity already has a record for the session date; the check is
	// atomic, concurrent duplicates cannot both succeed.
	RecordCheckIn(ctx context.Context, record *AttendanceRecord) error
	// ReportByDate returns all records for a session date ordered by
	// check-in time.
	ReportByDate(ctx context.Context, date time.Time) ([]AttendanceRecord, error)
	// HistoryByIdentity returns an identity's records, newest first,
	// capped at limit (0 means no cap).
	HistoryByIdentity(ctx context.Context, identityID string, limit int) ([]AttendanceRecord, error)
	// CountByDate returns the number of check-ins for a session date.
	CountByDate(ctx context.Context, date time.Time) (int, error)
}
