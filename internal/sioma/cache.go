package sioma

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sioma/spot-ingest/internal/spots"
)

const loteCacheKeyPrefix = "sioma:lotes:"

// CatalogSource yields the lote catalog for a finca. *Client satisfies it.
type CatalogSource interface {
	Lotes(ctx context.Context, fincaID string) ([]spots.Lote, error)
}

// CatalogCache is a read-through Redis cache over the lote catalog so
// repeated validations of the same finca don't refetch it. Runs fine
// without Redis: a nil client degrades to direct fetches, and any Redis
// error falls back to the source (cache problems never fail a validation).
type CatalogCache struct {
	source CatalogSource
	rdb    *redis.Client
	ttl    time.Duration
}

// NewCatalogCache wraps source with a Redis cache. ttl <= 0 defaults to
// 5 minutes.
func NewCatalogCache(source CatalogSource, rdb *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{source: source, rdb: rdb, ttl: ttl}
}

// Lotes returns the catalog for a finca, serving from cache when possible.
func (c *CatalogCache) Lotes(ctx context.Context, fincaID string) ([]spots.Lote, error) {
	if c.rdb == nil {
		return c.source.Lotes(ctx, fincaID)
	}

	key := loteCacheKeyPrefix + fincaID
	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var lotes []spots.Lote
		if err := json.Unmarshal(cached, &lotes); err == nil {
			return lotes, nil
		}
		// Unreadable entry: drop it and refetch.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		log.Printf("[sioma] catalog cache read %s: %v", key, err)
	}

	lotes, err := c.source.Lotes(ctx, fincaID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(lotes); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.Printf("[sioma] catalog cache write %s: %v", key, err)
		}
	}
	return lotes, nil
}

// Invalidate drops the cached catalog for a finca.
func (c *CatalogCache) Invalidate(ctx context.Context, fincaID string) {
	if c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, loteCacheKeyPrefix+fincaID)
}
