package container

import (
	"fmt"
	"net/http"

	"github.com/autoland/lando/cmd/lando/repository"
	"github.com/autoland/lando/cmd/lando/service"
	"github.com/autoland/lando/common/bootstrap"
	"github.com/autoland/lando/common/clients"
	"github.com/autoland/lando/common/ratelimit"
	rediscommon "github.com/autoland/lando/common/redis"
	"github.com/redis/go-redis/v9"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components  *bootstrap.Components
	BlobRedis   *rediscommon.Client
	RateLimiter *ratelimit.Limiter

	// External service clients
	PhabClient   *clients.PhabricatorClient
	TransplantCl *clients.TransplantClient
	PatchStore   *clients.RedisPatchStore

	// Repositories
	LandingRepo *repository.LandingRepository
	PatchRepo   *repository.PatchRepository

	// Services
	Assembler         *service.PatchAssembler
	LandingService    *service.LandingService
	AssessmentService *service.AssessmentService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Redis client backing the patch blob store
	blobRaw := redis.NewClient(&redis.Options{
		Addr:     cfg.BlobStoreAddr(),
		Password: cfg.BlobStore.Password,
		DB:       0,
	})
	blobRedis := rediscommon.NewClient(blobRaw, components.Logger)
	rateLimiter := ratelimit.NewLimiter(blobRaw, components.Logger)

	// External service clients
	phabHTTP := clients.NewHTTPClient(&http.Client{Timeout: cfg.Phabricator.Timeout}, components.Logger)
	phabClient := clients.NewPhabricatorClient(
		cfg.Phabricator.URL,
		cfg.Phabricator.UnprivilegedAPIKey,
		phabHTTP,
		components.Logger,
	)

	transplantHTTP := clients.NewHTTPClient(&http.Client{Timeout: cfg.Transplant.Timeout}, components.Logger)
	transplantClient := clients.NewTransplantClient(cfg.Transplant.URL, transplantHTTP, components.Logger)

	patchStore := clients.NewRedisPatchStore(blobRaw, cfg.BlobStore.Bucket, components.Logger)

	// Initialize repositories
	landingRepo := repository.NewLandingRepository(components.DB)
	patchRepo := repository.NewPatchRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	assembler := service.NewPatchAssembler(phabClient, patchStore, components.Logger)

	landingService := service.NewLandingService(
		landingRepo,
		patchRepo,
		assembler,
		phabClient,
		transplantClient,
		cfg.Transplant.PingbackHostURL,
		components.Logger,
	)

	assessmentService, err := service.NewAssessmentService(
		phabClient,
		cfg.Transplant.BlockerRules,
		components.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile landing blocker rules: %w", err)
	}

	return &Container{
		Components:        components,
		BlobRedis:         blobRedis,
		RateLimiter:       rateLimiter,
		PhabClient:        phabClient,
		TransplantCl:      transplantClient,
		PatchStore:        patchStore,
		LandingRepo:       landingRepo,
		PatchRepo:         patchRepo,
		Assembler:         assembler,
		LandingService:    landingService,
		AssessmentService: assessmentService,
	}, nil
}

// Close releases connections held by the container
func (c *Container) Close() error {
	return c.BlobRedis.GetUnderlying().Close()
}
