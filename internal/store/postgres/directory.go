package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/facegate/internal/store"
)

// DirectoryRepository reads the identity roster.
type DirectoryRepository struct {
	pool *Pool
}

// NewDirectoryRepository creates a directory repository.
func NewDirectoryRepository(pool *Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

const identityColumns = `id, first_name, last_name, middle_name, email, user_type,
	company_name, job_title, face_image_url, status`

func scanIdentity(row interface{ Scan(...any) error }) (store.Identity, error) {
	var id store.Identity
	err := row.Scan(&id.ID, &id.FirstName, &id.LastName, &id.MiddleName, &id.Email,
		&id.UserType, &id.CompanyName, &id.JobTitle, &id.FaceImageURL, &id.Status)
	return id, err
}

// ListIdentities returns all active identities with their face-image
// references, ordered by ID for deterministic reconciliation.
func (r *DirectoryRepository) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM identities WHERE status <> 'DISABLED' ORDER BY id", identityColumns))
	if err != nil {
		return nil, fmt.Errorf("%w: list identities: %v", store.ErrExternalStore, err)
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// GetIdentity returns one identity, or nil if unknown.
func (r *DirectoryRepository) GetIdentity(ctx context.Context, identityID string) (*store.Identity, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM identities WHERE id = $1", identityColumns), identityID)
	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get identity: %v", store.ErrExternalStore, err)
	}
	return &id, nil
}
