package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/facegate/internal/store"
	"github.com/pgvector/pgvector-go"
)

// ProfileRepository persists per-identity face profiles and the enrollment
// log.
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a profile repository.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// SaveProfile inserts or replaces the face profile for an identity.
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile store.FaceProfile) error {
	landmarks, err := json.Marshal(profile.Landmarks)
	if err != nil {
		return fmt.Errorf("marshal landmarks: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO face_profiles (identity_id, embedding, landmarks, det_score, model, dim, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (identity_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			landmarks = EXCLUDED.landmarks,
			det_score = EXCLUDED.det_score,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			updated_at = NOW()
	`, profile.IdentityID, pgvector.NewVector(profile.Embedding), landmarks,
		profile.DetScore, profile.Model, profile.Dim)
	if err != nil {
		return fmt.Errorf("%w: save profile: %v", store.ErrExternalStore, err)
	}
	return nil
}

// DeleteProfile removes the profile; absent profiles are not an error.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, identityID string) error {
	if _, err := r.pool.Exec(ctx,
		"DELETE FROM face_profiles WHERE identity_id = $1", identityID); err != nil {
		return fmt.Errorf("%w: delete profile: %v", store.ErrExternalStore, err)
	}
	return nil
}

// GetProfile returns the stored profile, or nil if absent.
func (r *ProfileRepository) GetProfile(ctx context.Context, identityID string) (*store.FaceProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT identity_id, embedding, landmarks, det_score, model, dim, updated_at
		FROM face_profiles WHERE identity_id = $1
	`, identityID)

	var p store.FaceProfile
	var embedding pgvector.Vector
	var landmarks []byte
	err := row.Scan(&p.IdentityID, &embedding, &landmarks, &p.DetScore, &p.Model, &p.Dim, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %v", store.ErrExternalStore, err)
	}
	p.Embedding = embedding.Slice()
	if err := json.Unmarshal(landmarks, &p.Landmarks); err != nil {
		return nil, fmt.Errorf("unmarshal landmarks: %w", err)
	}
	return &p, nil
}

// LogEnrollment appends one enrollment outcome to the log.
func (r *ProfileRepository) LogEnrollment(ctx context.Context, entry store.EnrollmentLogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrollment_log (identity_id, success, reason, source, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, entry.IdentityID, entry.Success, entry.Reason, entry.Source)
	if err != nil {
		return fmt.Errorf("%w: log enrollment: %v", store.ErrExternalStore, err)
	}
	return nil
}
