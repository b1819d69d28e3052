package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/logging"
)

// CachedPriceOracle is a read-through Redis cache in front of a price
// oracle. Prices are bucketed by hour: block timestamps inside the same
// hour share one cache entry, which is the granularity the reference
// price needs for balance conversion.
type CachedPriceOracle struct {
	cache    *RedisCache
	upstream chain.PriceOracle
	ttl      time.Duration
	logger   *logging.Logger
}

// NewCachedPriceOracle wraps an oracle with Redis caching.
func NewCachedPriceOracle(cache *RedisCache, upstream chain.PriceOracle, ttl time.Duration) *CachedPriceOracle {
	return &CachedPriceOracle{
		cache:    cache,
		upstream: upstream,
		ttl:      ttl,
		logger:   logging.GetGlobalLogger().WithField("component", "pricecache"),
	}
}

// PriceAt returns the cached price for the timestamp's hour bucket,
// falling back to the upstream oracle on miss. Cache failures degrade to
// the upstream rather than failing the lookup.
func (o *CachedPriceOracle) PriceAt(ctx context.Context, ts time.Time) (decimal.Decimal, error) {
	key := priceKey(ts)

	if cached, err := o.cache.Get(ctx, key); err == nil {
		if price, parseErr := decimal.NewFromString(cached); parseErr == nil {
			return price, nil
		}
		// Unparseable entry: drop it and refetch.
		_ = o.cache.Del(ctx, key)
	}

	price, err := o.upstream.PriceAt(ctx, ts)
	if err != nil {
		return decimal.Zero, err
	}

	if err := o.cache.Set(ctx, key, price.String(), o.ttl); err != nil {
		o.logger.WithError(err).Warn("Failed to cache reference price")
	}
	return price, nil
}

func priceKey(ts time.Time) string {
	return fmt.Sprintf("price:native:%s", ts.UTC().Truncate(time.Hour).Format("2006010215"))
}
