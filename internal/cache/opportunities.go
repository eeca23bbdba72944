package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpportunityRecord captures the best result seen for a pair and strategy.
type OpportunityRecord struct {
	ProfitFraction float64   `json:"profit_fraction"`
	CapacityUSD    float64   `json:"capacity_usd"`
	Strategy       string    `json:"strategy"`
	SnapshotID     string    `json:"snapshot_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OpportunityCache remembers opportunities across cycles so the engine only
// announces ones that are new or improved.
type OpportunityCache interface {
	Get(ctx context.Context, key string) (*OpportunityRecord, bool, error)
	Set(ctx context.Context, key string, record OpportunityRecord) error
}

type redisOpportunityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisOpportunityCache builds a cache keyed by pair id and strategy.
func NewRedisOpportunityCache(client *redis.Client, ttl time.Duration, prefix string) OpportunityCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if prefix == "" {
		prefix = "pair_best"
	}
	return &redisOpportunityCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *redisOpportunityCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *redisOpportunityCache) Get(ctx context.Context, key string) (*OpportunityRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record OpportunityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *redisOpportunityCache) Set(ctx context.Context, key string, record OpportunityRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), payload, c.ttl).Err()
}
