package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
)

const keyRiskRecompute = "risk:recompute:house:%s"

// On-demand recomputation is heavier than a read, so each house gets a
// small budget. The background scheduler is not limited.
const (
	recomputeRate  = 0.2 // one token every five seconds
	recomputeBurst = 3
)

// RecomputeLimiter throttles manual risk recomputation per house. With no
// redis client the limiter is disabled and every request passes.
type RecomputeLimiter struct {
	bucket *TokenBucket
}

func NewRecomputeLimiter(client *redis.Client) *RecomputeLimiter {
	if client == nil {
		return nil
	}
	return &RecomputeLimiter{bucket: NewTokenBucket(client)}
}

func (l *RecomputeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *RecomputeLimiter) Allow(ctx context.Context, houseID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRiskRecompute, houseID), recomputeRate, recomputeBurst)
}
