package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duelcast/betwatch/internal/domain"
)

// ethUsdKey holds the single ETH/USD quote as a hash with fields "price" and
// "ts" (Unix second timestamp).
var ethUsdKey = key("price:ethusd")

// PriceCache implements domain.PriceCache using a Redis hash.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.rdb}
}

// SetEthUsd stores the latest ETH/USD quote and its fetch time.
func (pc *PriceCache) SetEthUsd(ctx context.Context, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.Unix(), 10),
	}
	if err := pc.rdb.HSet(ctx, ethUsdKey, fields).Err(); err != nil {
		return fmt.Errorf("redis: set eth/usd: %w", err)
	}
	return nil
}

// EthUsd retrieves the cached ETH/USD quote. It returns domain.ErrNotFound
// when no quote has been stored.
func (pc *PriceCache) EthUsd(ctx context.Context) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, ethUsdKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get eth/usd: %w", err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse eth/usd price: %w", err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsSec, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse eth/usd ts: %w", err)
	}

	return price, time.Unix(tsSec, 0), nil
}
