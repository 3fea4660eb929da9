package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/autoland/lando/cmd/lando/models"
	"github.com/autoland/lando/cmd/lando/service"
	"github.com/autoland/lando/common/bootstrap"
	"github.com/autoland/lando/common/config"
	"github.com/autoland/lando/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLandingStore holds a single submitted landing
type stubLandingStore struct {
	landing *models.Landing
	updated bool
}

func (s *stubLandingStore) Create(ctx context.Context, landing *models.Landing) error { return nil }

func (s *stubLandingStore) Update(ctx context.Context, landing *models.Landing) error {
	s.landing = landing
	s.updated = true
	return nil
}

func (s *stubLandingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Landing, error) {
	return s.landing, nil
}

func (s *stubLandingStore) GetByRequestID(ctx context.Context, requestID int64) (*models.Landing, error) {
	if s.landing != nil && s.landing.RequestID != nil && *s.landing.RequestID == requestID {
		return s.landing, nil
	}
	return nil, nil
}

func (s *stubLandingStore) List(ctx context.Context, revisionID int, status models.LandingStatus) ([]*models.Landing, error) {
	return nil, nil
}

type stubPatchStore struct{}

func (stubPatchStore) Create(ctx context.Context, patch *models.Patch) error { return nil }
func (stubPatchStore) GetByLandingID(ctx context.Context, landingID uuid.UUID) ([]*models.Patch, error) {
	return nil, nil
}

func newPingbackFixture(enabled bool) (*PingbackHandler, *stubLandingStore) {
	log := logger.New("error", "json")

	cfg := &config.Config{}
	cfg.Transplant.APIKey = "someapikey"
	cfg.Transplant.PingbackEnabled = enabled

	requestID := int64(42)
	store := &stubLandingStore{
		landing: &models.Landing{
			ID:         uuid.New(),
			RequestID:  &requestID,
			RevisionID: 1,
			DiffID:     11,
			Status:     models.StatusSubmitted,
		},
	}

	landings := service.NewLandingService(store, stubPatchStore{}, nil, nil, nil, "http://lando.test", log)

	handler := &PingbackHandler{
		components: &bootstrap.Components{Config: cfg, Logger: log},
		landings:   landings,
	}
	return handler, store
}

func postPingback(handler *PingbackHandler, apiKey, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/landings/1/update", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if apiKey != "" {
		req.Header.Set("API-Key", apiKey)
	}
	rec := httptest.NewRecorder()

	c := e.NewContext(req, rec)
	c.SetPath("/landings/:landing_id/update")
	c.SetParamNames("landing_id")
	c.SetParamValues("1")

	_ = handler.UpdateLanding(c)
	return rec
}

func TestPingbackRejectedWhenDisabled(t *testing.T) {
	handler, store := newPingbackFixture(false)

	rec := postPingback(handler, "someapikey", `{"request_id":42,"landed":true}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, store.updated)
	assert.Equal(t, models.StatusSubmitted, store.landing.Status)
}

func TestPingbackRejectedWithWrongKey(t *testing.T) {
	handler, store := newPingbackFixture(true)

	rec := postPingback(handler, "wrongapikey", `{"request_id":42,"landed":true}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, store.updated)
}

func TestPingbackRejectedWithMissingKey(t *testing.T) {
	handler, store := newPingbackFixture(true)

	rec := postPingback(handler, "", `{"request_id":42,"landed":true}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, store.updated)
}

func TestPingbackUnknownRequestID(t *testing.T) {
	handler, store := newPingbackFixture(true)

	rec := postPingback(handler, "someapikey", `{"request_id":7,"landed":true}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, store.updated)
}

func TestPingbackMissingRequestID(t *testing.T) {
	handler, _ := newPingbackFixture(true)

	rec := postPingback(handler, "someapikey", `{"landed":true}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPingbackAppliesLandedResult(t *testing.T) {
	handler, store := newPingbackFixture(true)

	rec := postPingback(handler, "someapikey",
		`{"request_id":42,"landed":true,"result":"9d24f6cb513e"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.updated)
	assert.Equal(t, models.StatusLanded, store.landing.Status)
	assert.Equal(t, "9d24f6cb513e", store.landing.Result)
}

func TestPingbackAppliesFailedResult(t *testing.T) {
	handler, store := newPingbackFixture(true)

	rec := postPingback(handler, "someapikey",
		`{"request_id":42,"landed":false,"error_msg":"hg error in cmd"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusFailed, store.landing.Status)
	assert.Equal(t, "hg error in cmd", store.landing.Error)
}
