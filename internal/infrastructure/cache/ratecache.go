// Package cache provides Redis-backed caches for data whose source of
// truth is an external API or an at-least-once delivery stream.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dropcode/internal/application/payment/gateway"
)

const (
	rateCacheKey = "cryptopay:rates"
	rateCacheTTL = 5 * time.Minute
)

// RateCache caches the processor's exchange-rate table so invoice
// quoting does not hit the processor on every request. A miss returns
// redis.Nil wrapped; callers fall back to the live API.
type RateCache struct {
	client *redis.Client
}

func NewRateCache(client *redis.Client) *RateCache {
	return &RateCache{client: client}
}

// Get returns the cached rate table, or ok=false on a miss.
func (c *RateCache) Get(ctx context.Context) ([]gateway.ExchangeRate, bool, error) {
	val, err := c.client.Get(ctx, rateCacheKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rate cache: %w", err)
	}

	var rates []gateway.ExchangeRate
	if err := json.Unmarshal(val, &rates); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached rates: %w", err)
	}
	return rates, true, nil
}

// Set stores the rate table with the standard TTL.
func (c *RateCache) Set(ctx context.Context, rates []gateway.ExchangeRate) error {
	val, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("failed to encode rates: %w", err)
	}
	if err := c.client.Set(ctx, rateCacheKey, val, rateCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to write rate cache: %w", err)
	}
	return nil
}
