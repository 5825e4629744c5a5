package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog-import-service/internal/models"
)

// StatusStore keeps the latest import result of each tenant for a limited
// time and guards against overlapping runs
type StatusStore struct {
	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewStatusStore(redis *redis.Client, ttl, lockTTL time.Duration) *StatusStore {
	return &StatusStore{redis: redis, ttl: ttl, lockTTL: lockTTL}
}

func statusKey(tenantID string) string {
	return fmt.Sprintf("import:status:%s", tenantID)
}

func lockKey(tenantID string) string {
	return fmt.Sprintf("import:lock:%s", tenantID)
}

func (s *StatusStore) SetStatus(ctx context.Context, tenantID string, result models.ImportResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, statusKey(tenantID), data, s.ttl).Err()
}

// GetStatus returns nil when no result is stored or it has expired
func (s *StatusStore) GetStatus(ctx context.Context, tenantID string) (*models.ImportResult, error) {
	val, err := s.redis.Get(ctx, statusKey(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result models.ImportResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearStatus removes the stored result once it has been displayed
func (s *StatusStore) ClearStatus(ctx context.Context, tenantID string) error {
	return s.redis.Del(ctx, statusKey(tenantID)).Err()
}

// AcquireLock reports false when another run holds the tenant's lock
func (s *StatusStore) AcquireLock(ctx context.Context, tenantID, owner string) (bool, error) {
	return s.redis.SetNX(ctx, lockKey(tenantID), owner, s.lockTTL).Result()
}

// releaseLockScript deletes the lock key only while it still holds the owner token
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseLock drops the lock only if owner still holds it
func (s *StatusStore) ReleaseLock(ctx context.Context, tenantID, owner string) error {
	return releaseLockScript.Run(ctx, s.redis, []string{lockKey(tenantID)}, owner).Err()
}
