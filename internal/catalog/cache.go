package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

const cachePrefix = "catalog:bundle:"

// Cache keeps resolved bundle definitions in Redis. A nil *Cache or a nil
// client turns every call into a miss.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// CacheKey is the Redis key holding the definition of code.
func CacheKey(code string) string {
	return cachePrefix + code
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Bundle returns the cached definition and whether it was present.
func (c *Cache) Bundle(ctx context.Context, code string) (bundle.Definition, bool, error) {
	var def bundle.Definition
	if !c.enabled() {
		return def, false, nil
	}
	data, err := c.client.Get(ctx, CacheKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return def, false, nil
	}
	if err != nil {
		return def, false, err
	}
	if err := json.Unmarshal(data, &def); err != nil {
		// a stale encoding is treated as a miss and overwritten
		return bundle.Definition{}, false, nil
	}
	return def, true, nil
}

func (c *Cache) StoreBundle(ctx context.Context, def bundle.Definition) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKey(def.Code), data, c.ttl).Err()
}

// Invalidate drops the cached definitions of codes.
func (c *Cache) Invalidate(ctx context.Context, codes ...string) error {
	if !c.enabled() || len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = CacheKey(code)
	}
	return c.client.Del(ctx, keys...).Err()
}
