package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// Cache is the read-side cache in front of Postgres. Every method treats
// Redis as optional: callers log the error and fall back to the database.
type Cache struct {
	RDB        *redis.Client
	ProductTTL time.Duration
}

func NewCache(rdb *redis.Client, productTTL time.Duration) *Cache {
	if productTTL <= 0 {
		productTTL = TTLProductList
	}
	return &Cache{RDB: rdb, ProductTTL: productTTL}
}

// ProductListKey derives the key for one listing page. fingerprint must be a
// canonical encoding of the query parameters.
func (c *Cache) ProductListKey(ctx context.Context, fingerprint string) (string, error) {
	v, err := c.RDB.Get(ctx, KeyProductsVersion).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf(KeyProductList, v, xxhash.Sum64String(fingerprint)), nil
}

// BumpProducts invalidates every cached product page at once; stale pages
// expire on their own TTL.
func (c *Cache) BumpProducts(ctx context.Context) error {
	return c.RDB.Incr(ctx, KeyProductsVersion).Err()
}

func (c *Cache) OrderKey(orderID int64) string { return fmt.Sprintf(KeyOrderDetail, orderID) }

func (c *Cache) InvalidateOrders(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.OrderKey(id)
	}
	return c.RDB.Del(ctx, keys...).Err()
}

// GetJSON reports whether key was present and decoded into v.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	b, err := c.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, key, b, ttl).Err()
}

// MarkProcessed records eventID for group and reports whether this is the
// first delivery.
func (c *Cache) MarkProcessed(ctx context.Context, group, eventID string) (bool, error) {
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, group, eventID), 1, TTLDedup).Result()
}

func (c *Cache) UnmarkProcessed(ctx context.Context, group, eventID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, group, eventID)).Err()
}
