package service

import (
	"context"

	"github.com/autoland/lando/cmd/lando/models"
	"github.com/autoland/lando/common/clients"
	"github.com/google/uuid"
)

// RevisionGateway reads revision, diff, user and repository data from the
// code review service. Pure read-through; every call hits the service fresh.
type RevisionGateway interface {
	GetRevision(ctx context.Context, id int) (*clients.Revision, error)
	ActiveDiffID(ctx context.Context, rev *clients.Revision) (int, error)
	GetDiff(ctx context.Context, diffID int) (*clients.Diff, error)
	GetRawDiff(ctx context.Context, diffID int) (string, error)
	GetRevisionAuthor(ctx context.Context, rev *clients.Revision) (*clients.User, error)
	GetRepo(ctx context.Context, phid string) (*clients.Repo, error)
	GetDependencies(ctx context.Context, rev *clients.Revision) ([]*clients.Revision, error)
}

// TransplantGateway submits land jobs to the autoland service
type TransplantGateway interface {
	Land(ctx context.Context, ldapUsername string, patchURLs []string, destination, pingbackURL string) (int64, error)
}

// PatchStore is write-once blob storage for rendered patches
type PatchStore interface {
	Upload(ctx context.Context, name string, content []byte) (string, error)
}

// LandingStore persists landing requests
type LandingStore interface {
	Create(ctx context.Context, landing *models.Landing) error
	Update(ctx context.Context, landing *models.Landing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Landing, error)
	GetByRequestID(ctx context.Context, requestID int64) (*models.Landing, error)
	List(ctx context.Context, revisionID int, status models.LandingStatus) ([]*models.Landing, error)
}

// PatchRecordStore persists patch records owned by landing requests
type PatchRecordStore interface {
	Create(ctx context.Context, patch *models.Patch) error
	GetByLandingID(ctx context.Context, landingID uuid.UUID) ([]*models.Patch, error)
}
