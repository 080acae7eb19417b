package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardtalk/api/models"
)

const categoryListKey = "cardtalk:categories:list"

// CategoryCache keeps the public category listing in Redis for a short TTL.
type CategoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCategoryCache(rdb *redis.Client, ttl time.Duration) *CategoryCache {
	return &CategoryCache{rdb: rdb, ttl: ttl}
}

// GetList returns the cached listing, or ok=false on a miss.
func (c *CategoryCache) GetList(ctx context.Context) ([]models.Category, bool, error) {
	raw, err := c.rdb.Get(ctx, categoryListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read category cache: %w", err)
	}
	var categories []models.Category
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, false, fmt.Errorf("decode category cache: %w", err)
	}
	return categories, true, nil
}

func (c *CategoryCache) SetList(ctx context.Context, categories []models.Category) error {
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode category cache: %w", err)
	}
	if err := c.rdb.Set(ctx, categoryListKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write category cache: %w", err)
	}
	return nil
}

func (c *CategoryCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, categoryListKey).Err(); err != nil {
		return fmt.Errorf("invalidate category cache: %w", err)
	}
	return nil
}
