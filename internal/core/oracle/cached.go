package oracle

import (
	"fmt"
	"math/big"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedSource wraps a PriceSource with an LRU cache and a staleness
// bound. A cached quote older than MaxAge is discarded and refetched;
// if the refetch fails the lookup fails rather than serving the stale
// value.
type CachedSource struct {
	inner  PriceSource
	maxAge time.Duration
	cache  *lru.Cache[uint32, Quote]
	now    func() time.Time
}

// NewCachedSource wraps inner with a cache of at most size entries.
func NewCachedSource(inner PriceSource, size int, maxAge time.Duration) (*CachedSource, error) {
	cache, err := lru.New[uint32, Quote](size)
	if err != nil {
		return nil, fmt.Errorf("oracle: create price cache: %w", err)
	}
	return &CachedSource{inner: inner, maxAge: maxAge, cache: cache, now: time.Now}, nil
}

// LatestPrice implements PriceSource.
func (c *CachedSource) LatestPrice(tokenID uint32) (*big.Int, uint8, error) {
	if q, ok := c.cache.Get(tokenID); ok && c.now().Sub(q.At) <= c.maxAge {
		return new(big.Int).Set(q.Value), q.Decimals, nil
	}
	value, decimals, err := c.inner.LatestPrice(tokenID)
	if err != nil {
		c.cache.Remove(tokenID)
		return nil, 0, err
	}
	c.cache.Add(tokenID, Quote{Value: new(big.Int).Set(value), Decimals: decimals, At: c.now()})
	return value, decimals, nil
}
