package deliverable

import (
	"context"
	"time"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SubmissionGuard serialises concurrent submissions of one content id so only
// one of them pays for the external fetch. It is an optimisation; the unique
// index stays the correctness guarantee.
type SubmissionGuard interface {
	Acquire(ctx context.Context, organizationID, externalID string) (release func(), acquired bool)
}

type noopGuard struct{}

func (noopGuard) Acquire(context.Context, string, string) (func(), bool) {
	return func() {}, true
}

type redisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, cfg *config.Config) SubmissionGuard {
	ttl := cfg.Submission.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisGuard{rdb: rdb, ttl: ttl}
}

// Acquire fails open: when redis is unavailable the caller proceeds.
func (g *redisGuard) Acquire(ctx context.Context, organizationID, externalID string) (func(), bool) {
	key := rediskey.BuildSubmissionLockKey(organizationID, externalID)

	ok, err := g.rdb.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		zap.L().Warn("submission lock unavailable, continuing without it",
			zap.String("key", key),
			zap.Error(err),
		)
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}

	return func() {
		if err := g.rdb.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			zap.L().Warn("failed to release submission lock", zap.String("key", key), zap.Error(err))
		}
	}, true
}
