package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the result of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// Limiter provides fixed-window rate limiting using Redis + Lua
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewLimiter creates a new rate limiter with embedded Lua script
func NewLimiter(redisClient *redis.Client, logger Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CheckRequesterLimit checks the rate limit for a specific requester
func (l *Limiter) CheckRequesterLimit(ctx context.Context, requester string, limit int64, windowSec int) (*Result, error) {
	key := fmt.Sprintf("rate_limit:requester:%s", requester)
	return l.checkLimit(ctx, key, limit, windowSec)
}

// checkLimit executes the rate limit Lua script atomically
func (l *Limiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	raw, err := l.script.Run(ctx, l.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		l.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Parse result array: {allowed, current_count, limit, retry_after}
	resultArray, ok := raw.([]interface{})
	if !ok || len(resultArray) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	result := &Result{
		Allowed:           resultArray[0].(int64) == 1,
		CurrentCount:      resultArray[1].(int64),
		Limit:             resultArray[2].(int64),
		RetryAfterSeconds: resultArray[3].(int64),
	}

	if !result.Allowed {
		l.logger.Warn("rate limit exceeded",
			"key", key,
			"current", result.CurrentCount,
			"limit", limit,
			"retry_after", result.RetryAfterSeconds)
	}

	return result, nil
}

// GetCurrentCount returns current count without incrementing (for monitoring)
func (l *Limiter) GetCurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rate limit count: %w", err)
	}
	return count, nil
}
