package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/crossarb/internal/models"
)

// BookCache holds recently fetched ask ladders per venue and token.
// A cached empty ladder is a valid hit: the book was empty when fetched.
type BookCache interface {
	Get(ctx context.Context, venue models.Venue, tokenID string) ([]models.OrderBookLevel, bool, error)
	Set(ctx context.Context, venue models.Venue, tokenID string, asks []models.OrderBookLevel) error
}

type redisBookCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisBookCache keeps books for ttl. The TTL should stay below the refresh
// interval so every cycle sees a book no older than one venue cache window.
func NewRedisBookCache(client *redis.Client, ttl time.Duration, prefix string) BookCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if prefix == "" {
		prefix = "book"
	}
	return &redisBookCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *redisBookCache) key(venue models.Venue, tokenID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, venue, tokenID)
}

func (c *redisBookCache) Get(ctx context.Context, venue models.Venue, tokenID string) ([]models.OrderBookLevel, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(venue, tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var asks []models.OrderBookLevel
	if err := json.Unmarshal(raw, &asks); err != nil {
		return nil, false, err
	}
	return asks, true, nil
}

func (c *redisBookCache) Set(ctx context.Context, venue models.Venue, tokenID string, asks []models.OrderBookLevel) error {
	if c == nil || c.client == nil {
		return nil
	}
	if asks == nil {
		asks = []models.OrderBookLevel{}
	}
	payload, err := json.Marshal(asks)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(venue, tokenID), payload, c.ttl).Err()
}
