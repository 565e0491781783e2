package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *database.Identity) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO identities (id, full_name, group_name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, identity.ID, identity.FullName, identity.GroupName, identity.Email,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return database.ErrIdentityExists
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// Get retrieves an identity by ID.
func (r *IdentityRepository) Get(ctx context.Context, id string) (*database.Identity, error) {
	var identity database.Identity
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, group_name, email, created_at, updated_at
		FROM identities
		WHERE id = $1
	`, id).Scan(
		&identity.ID, &identity.FullName, &identity.GroupName,
		&identity.Email, &identity.CreatedAt, &identity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &identity, nil
}

// List returns all identities ordered by ID.
func (r *IdentityRepository) List(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, group_name, email, created_at, updated_at
		FROM identities
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

// Update rewrites an identity's mutable fields.
func (r *IdentityRepository) Update(ctx context.Context, identity *database.Identity) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE identities SET
			full_name = $1,
			group_name = $2,
			email = $3,
			updated_at = NOW()
		WHERE id = $4
	`, identity.FullName, identity.GroupName, identity.Email, identity.ID)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrIdentityNotFound
	}
	return nil
}

// Delete removes an identity. Reference faces and attendance records go
// with it via ON DELETE CASCADE.
func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete identity rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrIdentityNotFound
	}
	return nil
}

// Exists checks whether an identity ID is enrolled.
func (r *IdentityRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM identities WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identity exists: %w", err)
	}
	return exists, nil
}

// SearchByName finds identities whose full name matches after normalization.
// The SQL side mirrors gallery.NormalizeName: lowercase, remove diacritics,
// replace dashes with spaces.
func (r *IdentityRepository) SearchByName(ctx context.Context, name string) ([]database.Identity, error) {
	normalized := gallery.NormalizeName(name)

	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, group_name, email, created_at, updated_at
		FROM identities
		WHERE LOWER(REPLACE(unaccent(full_name), '-', ' ')) = $1
		ORDER BY id
	`, normalized)
	if err != nil {
		return nil, fmt.Errorf("search identities by name: %w", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		var identity database.Identity
		if err := rows.Scan(
			&identity.ID, &identity.FullName, &identity.GroupName,
			&identity.Email, &identity.CreatedAt, &identity.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// Verify interface compliance.
var _ database.IdentityStore = (*IdentityRepository)(nil)
