package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

const (
	attemptKeyPrefix = "auth:attempts:"
	lockKeyPrefix    = "auth:lock:"
)

// RedisRateLimiter counts failures per scope:identifier with atomic INCR and
// promotes the counter into a lockout key once the scope threshold is hit.
type RedisRateLimiter struct {
	client *redis.Client
	nowFn  func() time.Time
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (l *RedisRateLimiter) RecordFailure(ctx context.Context, scope, identifier string, limit int, window, lockFor time.Duration) (ports.AttemptState, error) {
	counterKey := attemptKeyPrefix + scope + ":" + identifier

	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return ports.AttemptState{}, err
	}
	if count == 1 {
		// First failure opens the window; later failures never extend it.
		if err := l.client.Expire(ctx, counterKey, window).Err(); err != nil {
			return ports.AttemptState{}, err
		}
	}

	state := ports.AttemptState{Count: int(count)}
	if limit > 0 && int(count) >= limit {
		lockKey := lockKeyPrefix + scope + ":" + identifier
		until := l.nowFn().Add(lockFor)
		_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, lockKey, "1", lockFor)
			p.Del(ctx, counterKey)
			return nil
		})
		if err != nil {
			return ports.AttemptState{}, err
		}
		state.Locked = true
		state.LockedUntil = &until
	}
	return state, nil
}

func (l *RedisRateLimiter) IsLocked(ctx context.Context, scope, identifier string) (bool, time.Time, error) {
	lockKey := lockKeyPrefix + scope + ":" + identifier
	ttl, err := l.client.PTTL(ctx, lockKey).Result()
	if err != nil {
		return false, time.Time{}, err
	}
	if ttl <= 0 {
		// -2 no key, -1 no expiry; either way the scope is open.
		return false, time.Time{}, nil
	}
	return true, l.nowFn().Add(ttl), nil
}

func (l *RedisRateLimiter) Clear(ctx context.Context, scope, identifier string) error {
	return l.client.Del(ctx,
		attemptKeyPrefix+scope+":"+identifier,
		lockKeyPrefix+scope+":"+identifier,
	).Err()
}
