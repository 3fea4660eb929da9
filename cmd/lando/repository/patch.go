package repository

import (
	"context"
	"fmt"

	"github.com/autoland/lando/cmd/lando/models"
	"github.com/autoland/lando/common/db"
	"github.com/google/uuid"
)

// PatchRepository handles database operations for patch records
type PatchRepository struct {
	db *db.DB
}

// NewPatchRepository creates a new patch repository
func NewPatchRepository(database *db.DB) *PatchRepository {
	return &PatchRepository{db: database}
}

// Create inserts a new patch record
func (r *PatchRepository) Create(ctx context.Context, patch *models.Patch) error {
	query := `
		INSERT INTO patches (id, landing_id, revision_id, diff_id, seq, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		patch.ID,
		patch.LandingID,
		patch.RevisionID,
		patch.DiffID,
		patch.Seq,
		patch.URL,
		patch.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create patch: %w", err)
	}

	return nil
}

// GetByLandingID retrieves all patches for a landing request, ordered by
// application sequence (oldest ancestor first)
func (r *PatchRepository) GetByLandingID(ctx context.Context, landingID uuid.UUID) ([]*models.Patch, error) {
	query := `
		SELECT id, landing_id, revision_id, diff_id, seq, url, created_at
		FROM patches
		WHERE landing_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.Query(ctx, query, landingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patches: %w", err)
	}
	defer rows.Close()

	var patches []*models.Patch
	for rows.Next() {
		patch := &models.Patch{}
		err := rows.Scan(&patch.ID, &patch.LandingID, &patch.RevisionID, &patch.DiffID, &patch.Seq, &patch.URL, &patch.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patch: %w", err)
		}
		patches = append(patches, patch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patches: %w", err)
	}

	return patches, nil
}

// CountByLandingID returns the number of patches for a landing request
func (r *PatchRepository) CountByLandingID(ctx context.Context, landingID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM patches WHERE landing_id = $1`

	var count int
	err := r.db.QueryRow(ctx, query, landingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count patches: %w", err)
	}

	return count, nil
}
