package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ops_server/core/domain"
	"ops_server/core/port/out"
)

const templatesKey = "runbook:templates:active"

// RedisCache is a JSON cache and lock store on top of a Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

var (
	_ out.TemplateCache = (*RedisCache)(nil)
	_ out.RunbookLocker = (*RedisCache)(nil)
)

// GetJSON loads key into dest. It reports false on a miss.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value as JSON
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// =============================================================================
// Template cache
// =============================================================================

func (c *RedisCache) GetTemplates(ctx context.Context) ([]domain.TaskTemplate, bool, error) {
	var templates []domain.TaskTemplate
	ok, err := c.GetJSON(ctx, templatesKey, &templates)
	if err != nil || !ok {
		return nil, false, err
	}
	return templates, true, nil
}

func (c *RedisCache) SetTemplates(ctx context.Context, templates []domain.TaskTemplate, ttl time.Duration) error {
	return c.SetJSON(ctx, templatesKey, templates, ttl)
}

func (c *RedisCache) InvalidateTemplates(ctx context.Context) error {
	return c.Delete(ctx, templatesKey)
}

// =============================================================================
// Lock
// =============================================================================

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Acquire takes key with SET NX PX. The lock expires after ttl if the
// holder dies before calling release.
func (c *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, out.ErrLockHeld
	}

	release := func() {
		// The request context may already be cancelled here.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return release, nil
}
