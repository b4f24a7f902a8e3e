package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "auth:blacklist:"

// RedisTokenBlacklist stores SHA-256 fingerprints of revoked tokens. Entries
// carry a TTL no longer than the token's remaining lifetime, so the set never
// grows past the volume of live tokens.
type RedisTokenBlacklist struct {
	client *redis.Client
}

func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

func (b *RedisTokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; verification rejects it on exp alone.
		return nil
	}
	return b.client.Set(ctx, blacklistKeyPrefix+fingerprint(token), "1", ttl).Err()
}

func (b *RedisTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKeyPrefix+fingerprint(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
