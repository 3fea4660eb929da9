package clients

import (
	"context"
	"fmt"

	redisWrapper "github.com/autoland/lando/common/redis"
	"github.com/redis/go-redis/v9"
)

const (
	patchURLFormat = "blob://%s/%s"
	patchKeyFormat = "patch:%s:%s"
)

// PatchStore is write-once blob storage for rendered patches.
// The returned URL is handed to the transplant service, which fetches the
// patch body through a separate read path.
type PatchStore interface {
	Upload(ctx context.Context, name string, content []byte) (string, error)
}

// RedisPatchStore stores patch blobs in redis under a configured bucket.
//
// Keys are deterministic per patch name, so re-uploading the same name
// overwrites with identical content. That is safe: patch content for a
// given (landing, revision, diff) triple never changes.
type RedisPatchStore struct {
	redis  *redisWrapper.Client
	bucket string
	logger Logger
}

// NewRedisPatchStore creates a redis-backed patch store
func NewRedisPatchStore(redisClient *redis.Client, bucket string, logger Logger) *RedisPatchStore {
	return &RedisPatchStore{
		redis:  redisWrapper.NewClient(redisClient, logger),
		bucket: bucket,
		logger: logger,
	}
}

// Upload stores the patch body and returns its stable storage address
func (s *RedisPatchStore) Upload(ctx context.Context, name string, content []byte) (string, error) {
	key := fmt.Sprintf(patchKeyFormat, s.bucket, name)

	// No expiry: patches must outlive the transplant job that consumes them.
	if err := s.redis.SetWithExpiry(ctx, key, string(content), 0); err != nil {
		return "", fmt.Errorf("failed to upload patch %s: %w", name, err)
	}

	url := fmt.Sprintf(patchURLFormat, s.bucket, name)
	s.logger.Info("patch file uploaded", "patch_url", url, "size", len(content))
	return url, nil
}
