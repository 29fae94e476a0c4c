package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers logged out session ids until they expire
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) (err error)
	Revoked(ctx context.Context, id string) (revoked bool, err error)
}

// MemoryRevoker is the single process Revoker
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

var _ Revoker = (*MemoryRevoker)(nil)

func NewMemoryRevoker() (r *MemoryRevoker) {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevoker) Revoke(ctx context.Context, id string, until time.Time) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, expiry := range r.revoked {
		if !expiry.After(now) {
			delete(r.revoked, key)
		}
	}
	r.revoked[id] = until
	return nil
}

func (r *MemoryRevoker) Revoked(ctx context.Context, id string) (revoked bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, revoked = r.revoked[id]
	return revoked, nil
}

const revokedPrefix = "storefront:revoked:"

// RedisRevoker shares revocations between instances, relying on key expiry
// for cleanup
type RedisRevoker struct {
	client *redis.Client
}

var _ Revoker = (*RedisRevoker)(nil)

func NewRedisRevoker(client *redis.Client) (r *RedisRevoker) {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, id string, until time.Time) (err error) {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	err = r.client.Set(ctx, revokedPrefix+id, "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *RedisRevoker) Revoked(ctx context.Context, id string) (revoked bool, err error) {
	n, err := r.client.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query revocation: %w", err)
	}
	return n > 0, nil
}
