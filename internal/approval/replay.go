package approval

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "followup:callback:"

// ReplayGuard remembers verified signatures so an identical signed request
// is only honored once inside the replay window.
type ReplayGuard interface {
	// Claim returns true the first time signature is seen within ttl.
	Claim(ctx context.Context, signature string, ttl time.Duration) (bool, error)
	// Release forgets a claimed signature so the same delivery can be retried.
	Release(ctx context.Context, signature string) error
}

// NoopReplayGuard accepts every request. Used when Redis is not configured.
type NoopReplayGuard struct{}

func (NoopReplayGuard) Claim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (NoopReplayGuard) Release(context.Context, string) error { return nil }

// RedisReplayGuard claims signatures with SET NX so the guard holds across
// restarts of the API process.
type RedisReplayGuard struct {
	client redis.UniversalClient
}

// NewRedisReplayGuard wraps an existing client.
func NewRedisReplayGuard(client redis.UniversalClient) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, replayKeyPrefix+signature, time.Now().Unix(), ttl).Result()
}

func (g *RedisReplayGuard) Release(ctx context.Context, signature string) error {
	return g.client.Del(ctx, replayKeyPrefix+signature).Err()
}

// Ping checks connectivity.
func (g *RedisReplayGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
