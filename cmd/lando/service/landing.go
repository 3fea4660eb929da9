package service

import (
	"context"
	"fmt"
	"time"

	"github.com/autoland/lando/cmd/lando/models"
	"github.com/autoland/lando/common/logger"
	"github.com/google/uuid"
)

// LandingService owns the landing request lifecycle: validation, patch
// stack assembly, submission to transplant and pingback-driven completion.
type LandingService struct {
	landings   LandingStore
	patches    PatchRecordStore
	assembler  *PatchAssembler
	gateway    RevisionGateway
	transplant TransplantGateway

	pingbackHostURL string
	log             *logger.Logger
}

// NewLandingService creates a new landing service
func NewLandingService(
	landings LandingStore,
	patches PatchRecordStore,
	assembler *PatchAssembler,
	gateway RevisionGateway,
	transplant TransplantGateway,
	pingbackHostURL string,
	log *logger.Logger,
) *LandingService {
	return &LandingService{
		landings:        landings,
		patches:         patches,
		assembler:       assembler,
		gateway:         gateway,
		transplant:      transplant,
		pingbackHostURL: pingbackHostURL,
		log:             log,
	}
}

// CreateLandingRequest carries the validated inputs of a land request
type CreateLandingRequest struct {
	RevisionID int
	DiffID     int

	// OverrideDiffID, when non-zero, is the client's explicit confirmation
	// of which diff is currently active. Landing a stale DiffID is only
	// allowed when this matches the actual active diff.
	OverrideDiffID int

	// Requester is the identity of the user pushing the change
	Requester string
}

// Create runs one landing attempt end to end.
//
// Steps execute in strict sequence: fetch and validate the diff selection,
// resolve the dependency stack, assemble and upload every patch, persist
// the request (the pingback URL embeds its id, so persistence must precede
// submission), persist the patches, then submit to transplant. Two
// concurrent calls for the same revision are not deduplicated; each
// produces its own request and transplant job.
func (s *LandingService) Create(ctx context.Context, req *CreateLandingRequest) (*models.Landing, error) {
	rev, err := s.gateway.GetRevision(ctx, req.RevisionID)
	if err != nil {
		return nil, gatewayError(err, KindRevisionNotFound, req.RevisionID)
	}

	activeID, err := s.gateway.ActiveDiffID(ctx, rev)
	if err != nil {
		return nil, gatewayError(err, KindDiffNotFound, req.DiffID)
	}

	landing := models.NewLanding(req.RevisionID, req.DiffID, req.Requester)

	if req.OverrideDiffID != 0 {
		if req.OverrideDiffID != activeID {
			return nil, &Error{
				Kind:           KindOverrideMismatch,
				RevisionID:     req.RevisionID,
				DiffID:         req.DiffID,
				ActiveDiffID:   activeID,
				OverrideDiffID: req.OverrideDiffID,
			}
		}
		// Explicit forced landing of a stale diff; record the active diff
		// for audit.
		landing.ActiveDiffID = &activeID
		s.log.Warn("landing a stale diff by override",
			"revision_id", req.RevisionID,
			"diff_id", req.DiffID,
			"active_diff_id", activeID,
			"requester", req.Requester)
	} else if req.DiffID != activeID {
		return nil, &Error{
			Kind:         KindInactiveDiff,
			RevisionID:   req.RevisionID,
			DiffID:       req.DiffID,
			ActiveDiffID: activeID,
		}
	}

	stack, err := s.assembler.ResolveStack(ctx, rev, req.DiffID)
	if err != nil {
		return nil, err
	}

	// A revision without a resolvable destination repository cannot be
	// landed by anyone; treat it like any other gateway fault.
	repo, err := s.gateway.GetRepo(ctx, rev.RepositoryPHID)
	if err != nil {
		return nil, gatewayError(err, KindCommunicationFailure, req.RevisionID)
	}

	assembled := make([]*AssembledPatch, 0, len(stack))
	for _, entry := range stack {
		patch, err := s.assembler.AssembleAndStore(ctx, landing.ID, entry.Revision, entry.DiffID, entry.ClientSupplied)
		if err != nil {
			return nil, err
		}
		assembled = append(assembled, patch)
	}

	// Persist before contacting transplant: the submission payload carries
	// the pingback URL, which embeds the landing id.
	if err := s.landings.Create(ctx, landing); err != nil {
		return nil, fmt.Errorf("persist landing: %w", err)
	}

	patchURLs := make([]string, 0, len(assembled))
	for i, patch := range assembled {
		record := models.NewPatch(landing.ID, patch.RevisionID, patch.DiffID, i+1, patch.URL)
		if err := s.patches.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("persist patch: %w", err)
		}
		landing.Patches = append(landing.Patches, record)
		patchURLs = append(patchURLs, patch.URL)
	}

	requestID, err := s.transplant.Land(ctx, req.Requester, patchURLs, repo.URI, s.pingbackURL(landing.ID))
	if err != nil {
		// The request never reached submitted state. Keep the row for
		// audit but mark it aborted so it can never match a pingback.
		landing.Status = models.StatusAborted
		landing.Error = err.Error()
		landing.UpdatedAt = time.Now().UTC()
		if updateErr := s.landings.Update(ctx, landing); updateErr != nil {
			s.log.Error("failed to mark landing aborted",
				"landing_id", landing.ID.String(), "error", updateErr)
		}
		return nil, &Error{
			Kind:       KindSubmissionFailed,
			RevisionID: req.RevisionID,
			DiffID:     req.DiffID,
			Err:        err,
		}
	}

	landing.RequestID = &requestID
	landing.Status = models.StatusSubmitted
	landing.UpdatedAt = time.Now().UTC()
	if err := s.landings.Update(ctx, landing); err != nil {
		return nil, fmt.Errorf("persist submitted landing: %w", err)
	}

	s.log.Info("landing created for revision",
		"revision_id", req.RevisionID,
		"landing_id", landing.ID.String(),
		"request_id", requestID,
		"patches", len(patchURLs))

	return landing, nil
}

// Get returns a landing request with its patches, or nil when unknown
func (s *LandingService) Get(ctx context.Context, id uuid.UUID) (*models.Landing, error) {
	landing, err := s.landings.GetByID(ctx, id)
	if err != nil || landing == nil {
		return landing, err
	}

	landing.Patches, err = s.patches.GetByLandingID(ctx, id)
	if err != nil {
		return nil, err
	}
	return landing, nil
}

// List returns landing requests filtered by revision and/or status
func (s *LandingService) List(ctx context.Context, revisionID int, status models.LandingStatus) ([]*models.Landing, error) {
	return s.landings.List(ctx, revisionID, status)
}

// ApplyPingback applies a transplant status callback to the landing
// request identified by the transplant job id.
//
// Error and result text are taken verbatim from the payload. A repeat
// delivery for an already-terminal request overwrites the earlier outcome;
// that matches the transplant contract of at-most-one delivery, so an
// actual overwrite is logged loudly.
func (s *LandingService) ApplyPingback(ctx context.Context, requestID int64, landed bool, errorText, resultText string) (*models.Landing, error) {
	landing, err := s.landings.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("look up landing: %w", err)
	}
	if landing == nil {
		return nil, &Error{
			Kind:   KindLandingNotFound,
			Detail: fmt.Sprintf("no landing with request id %d", requestID),
		}
	}

	if landing.Status.Terminal() {
		s.log.Warn("pingback overwrites a terminal landing",
			"landing_id", landing.ID.String(),
			"request_id", requestID,
			"previous_status", string(landing.Status))
	}

	landing.Error = errorText
	landing.Result = resultText
	if landed {
		landing.Status = models.StatusLanded
	} else {
		landing.Status = models.StatusFailed
	}
	landing.UpdatedAt = time.Now().UTC()

	if err := s.landings.Update(ctx, landing); err != nil {
		return nil, fmt.Errorf("persist pingback update: %w", err)
	}

	s.log.Info("landing updated from pingback",
		"landing_id", landing.ID.String(),
		"request_id", requestID,
		"status", string(landing.Status))

	return landing, nil
}

func (s *LandingService) pingbackURL(landingID uuid.UUID) string {
	return fmt.Sprintf("%s/landings/%s/update", s.pingbackHostURL, landingID)
}
