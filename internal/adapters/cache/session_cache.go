package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

const (
	sessionKeyPrefix = "auth:session:"
	userIndexPrefix  = "auth:sessions:user:"
)

// RedisSessionCache holds JSON session copies keyed by session id, plus a
// per-user index set so a user-wide invalidation does not need a scan.
type RedisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(client *redis.Client) *RedisSessionCache {
	return &RedisSessionCache{client: client}
}

func (s *RedisSessionCache) Put(ctx context.Context, session ports.CachedSession, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKeyPrefix+session.SessionID.String(), raw, ttl)
		p.SAdd(ctx, userIndexPrefix+session.UserID.String(), session.SessionID.String())
		p.Expire(ctx, userIndexPrefix+session.UserID.String(), ttl)
		return nil
	})
	return err
}

// Get returns (nil, nil) on a miss so callers treat absence and expiry alike.
func (s *RedisSessionCache) Get(ctx context.Context, sessionID uuid.UUID) (*ports.CachedSession, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session ports.CachedSession
	if err := json.Unmarshal(raw, &session); err != nil {
		// A corrupt entry reads as a miss; the authoritative store decides.
		return nil, nil
	}
	return &session, nil
}

func (s *RedisSessionCache) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID.String()).Err()
}

func (s *RedisSessionCache) InvalidateAllForUser(ctx context.Context, userID uuid.UUID) error {
	indexKey := userIndexPrefix + userID.String()
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, indexKey)
	return s.client.Del(ctx, keys...).Err()
}
