package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/autoland/lando/cmd/lando/models"
	"github.com/autoland/lando/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LandingRepository handles database operations for landing requests
type LandingRepository struct {
	db *db.DB
}

// NewLandingRepository creates a new landing repository
func NewLandingRepository(database *db.DB) *LandingRepository {
	return &LandingRepository{db: database}
}

// Create inserts a new landing request
func (r *LandingRepository) Create(ctx context.Context, landing *models.Landing) error {
	query := `
		INSERT INTO landings (id, request_id, revision_id, diff_id, active_diff_id, requester, status, error, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		landing.ID,
		landing.RequestID,
		landing.RevisionID,
		landing.DiffID,
		landing.ActiveDiffID,
		landing.Requester,
		landing.Status,
		landing.Error,
		landing.Result,
		landing.CreatedAt,
		landing.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create landing: %w", err)
	}

	return nil
}

// Update saves mutable fields of an existing landing request
func (r *LandingRepository) Update(ctx context.Context, landing *models.Landing) error {
	query := `
		UPDATE landings
		SET request_id = $2, status = $3, error = $4, result = $5, updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.Exec(
		ctx,
		query,
		landing.ID,
		landing.RequestID,
		landing.Status,
		landing.Error,
		landing.Result,
		landing.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update landing: %w", err)
	}

	return nil
}

const landingColumns = `id, request_id, revision_id, diff_id, active_diff_id, requester, status, error, result, created_at, updated_at`

func scanLanding(row pgx.Row) (*models.Landing, error) {
	landing := &models.Landing{}
	err := row.Scan(
		&landing.ID,
		&landing.RequestID,
		&landing.RevisionID,
		&landing.DiffID,
		&landing.ActiveDiffID,
		&landing.Requester,
		&landing.Status,
		&landing.Error,
		&landing.Result,
		&landing.CreatedAt,
		&landing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return landing, nil
}

// GetByID retrieves a landing request by its local id.
// Returns nil without error when no row matches.
func (r *LandingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Landing, error) {
	query := `SELECT ` + landingColumns + ` FROM landings WHERE id = $1`

	landing, err := scanLanding(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get landing: %w", err)
	}

	return landing, nil
}

// GetByRequestID retrieves a landing request by its transplant job id.
// Returns nil without error when no row matches.
func (r *LandingRepository) GetByRequestID(ctx context.Context, requestID int64) (*models.Landing, error) {
	query := `SELECT ` + landingColumns + ` FROM landings WHERE request_id = $1`

	landing, err := scanLanding(r.db.QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get landing by request id: %w", err)
	}

	return landing, nil
}

// List retrieves landing requests filtered by revision and/or status.
// A zero revisionID or empty status disables that filter.
func (r *LandingRepository) List(ctx context.Context, revisionID int, status models.LandingStatus) ([]*models.Landing, error) {
	query := `
		SELECT ` + landingColumns + `
		FROM landings
		WHERE ($1 = 0 OR revision_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, revisionID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list landings: %w", err)
	}
	defer rows.Close()

	var landings []*models.Landing
	for rows.Next() {
		landing, err := scanLanding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan landing: %w", err)
		}
		landings = append(landings, landing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating landings: %w", err)
	}

	return landings, nil
}
