package handlers

import (
	"errors"
	"net/http"

	"github.com/autoland/lando/cmd/lando/container"
	"github.com/autoland/lando/cmd/lando/middleware"
	"github.com/autoland/lando/cmd/lando/models"
	"github.com/autoland/lando/cmd/lando/service"
	"github.com/autoland/lando/common/bootstrap"
	"github.com/autoland/lando/common/clients"
	"github.com/autoland/lando/common/validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// LandingHandler handles HTTP requests for landing requests
type LandingHandler struct {
	components  *bootstrap.Components
	landings    *service.LandingService
	assessments *service.AssessmentService
	phab        *clients.PhabricatorClient
}

// NewLandingHandler creates a new landing handler
func NewLandingHandler(c *container.Container) *LandingHandler {
	return &LandingHandler{
		components:  c.Components,
		landings:    c.LandingService,
		assessments: c.AssessmentService,
		phab:        c.PhabClient,
	}
}

// CreateLanding requests landing of a revision
// POST /landings
func (h *LandingHandler) CreateLanding(c echo.Context) error {
	ctx := c.Request().Context()

	requester, err := middleware.RequireRequester(c)
	if err != nil {
		return err
	}

	// A caller-supplied API token that Phabricator rejects is an auth
	// failure, not a fallback to the configured key.
	if token := middleware.GetPhabricatorToken(c); token != "" {
		if !h.phab.WithAPIToken(token).VerifyAPIToken(ctx) {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"error": "the provided Phabricator API key is not valid",
			})
		}
	}

	var req struct {
		RevisionID          string `json:"revision_id"`
		DiffID              int    `json:"diff_id"`
		ForceOverrideDiffID int    `json:"force_override_of_diff_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	revisionID, err := validation.RevisionIDToInt(req.RevisionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}
	if req.DiffID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "diff_id is required",
		})
	}

	h.components.Logger.Info("landing requested by user",
		"revision_id", revisionID,
		"diff_id", req.DiffID,
		"override_diff_id", req.ForceOverrideDiffID,
		"requester", requester)

	landing, err := h.landings.Create(ctx, &service.CreateLandingRequest{
		RevisionID:     revisionID,
		DiffID:         req.DiffID,
		OverrideDiffID: req.ForceOverrideDiffID,
		Requester:      requester,
	})
	if err != nil {
		return h.domainError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"id": landing.ID,
	})
}

// GetLanding returns one stored landing request
// GET /landings/:landing_id
func (h *LandingHandler) GetLanding(c echo.Context) error {
	ctx := c.Request().Context()

	landingID, err := uuid.Parse(c.Param("landing_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "landing not found",
		})
	}

	landing, err := h.landings.Get(ctx, landingID)
	if err != nil {
		h.components.Logger.Error("failed to get landing", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to get landing",
		})
	}

	// The landing is only visible to callers permitted to see the
	// underlying revision.
	if landing == nil || !h.revisionVisible(c, landing.RevisionID) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "the landing does not exist or you lack permission to see it",
		})
	}

	return c.JSON(http.StatusOK, landing)
}

// ListLandings returns landing requests filtered by revision and/or status
// GET /landings?revision_id=D1&status=submitted
func (h *LandingHandler) ListLandings(c echo.Context) error {
	ctx := c.Request().Context()

	revisionID := 0
	if raw := c.QueryParam("revision_id"); raw != "" {
		var err error
		revisionID, err = validation.RevisionIDToInt(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": err.Error(),
			})
		}

		if !h.revisionVisible(c, revisionID) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "the revision does not exist or you lack permission to see it",
			})
		}
	}

	landings, err := h.landings.List(ctx, revisionID, models.LandingStatus(c.QueryParam("status")))
	if err != nil {
		h.components.Logger.Error("failed to list landings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to list landings",
		})
	}
	if landings == nil {
		landings = []*models.Landing{}
	}

	return c.JSON(http.StatusOK, landings)
}

// Dryrun assesses whether a revision could land, without side effects
// POST /landings/dryrun
func (h *LandingHandler) Dryrun(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := middleware.RequireRequester(c); err != nil {
		return err
	}

	var req struct {
		RevisionID string `json:"revision_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	revisionID, err := validation.RevisionIDToInt(req.RevisionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	assessment, err := h.assessments.Assess(ctx, revisionID)
	if err != nil {
		return h.domainError(c, err)
	}

	return c.JSON(http.StatusOK, assessment)
}

// revisionVisible checks that the caller's credential can see the
// revision. The caller's own API token takes precedence over the
// configured unprivileged one.
func (h *LandingHandler) revisionVisible(c echo.Context, revisionID int) bool {
	phab := h.phab.WithAPIToken(middleware.GetPhabricatorToken(c))
	_, err := phab.GetRevision(c.Request().Context(), revisionID)
	if err != nil {
		var notFound *clients.NotFoundError
		if !errors.As(err, &notFound) {
			h.components.Logger.Warn("revision visibility check failed",
				"revision_id", revisionID, "error", err)
		}
		return false
	}
	return true
}

// domainError maps a domain error to its HTTP response. This is the only
// place landing error kinds meet transport codes.
func (h *LandingHandler) domainError(c echo.Context, err error) error {
	kind, ok := service.KindOf(err)
	if !ok {
		h.components.Logger.Error("unexpected landing error", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "internal error",
		})
	}

	var domainErr *service.Error
	errors.As(err, &domainErr)

	body := map[string]interface{}{
		"error":  kind.String(),
		"detail": domainErr.Error(),
	}

	switch kind {
	case service.KindRevisionNotFound, service.KindDiffNotFound, service.KindLandingNotFound:
		return c.JSON(http.StatusNotFound, body)

	case service.KindDiffNotInRevision, service.KindMultipleParents, service.KindCircularDependency:
		return c.JSON(http.StatusBadRequest, body)

	case service.KindInactiveDiff:
		body["diff_id"] = domainErr.DiffID
		body["active_diff_id"] = domainErr.ActiveDiffID
		return c.JSON(http.StatusConflict, body)

	case service.KindOverrideMismatch:
		body["diff_id"] = domainErr.DiffID
		body["active_diff_id"] = domainErr.ActiveDiffID
		body["override_diff_id"] = domainErr.OverrideDiffID
		return c.JSON(http.StatusConflict, body)

	case service.KindSubmissionFailed, service.KindCommunicationFailure:
		// Transient: the client is expected to retry later.
		body["retry"] = true
		return c.JSON(http.StatusBadGateway, body)

	default:
		return c.JSON(http.StatusInternalServerError, body)
	}
}
