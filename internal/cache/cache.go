// Package cache is the best-effort result cache in front of the read path.
// Every backend failure degrades to a miss or a dropped write.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

const DefaultTTL = 300 * time.Second

// Backend is a key/value store with per-entry expiry. A miss is reported as
// (nil, false, nil).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type kind string

const (
	kindDistrictsList   kind = "districts_list"
	kindDistrictSummary kind = "district_summary"
)

// Key identifies one cached result. Keys can only be built through the
// constructors below, so differently shaped results never share a key.
type Key struct {
	kind kind
	id   string
}

func DistrictsListKey() Key {
	return Key{kind: kindDistrictsList}
}

func DistrictSummaryKey(districtID int64) Key {
	return Key{kind: kindDistrictSummary, id: strconv.FormatInt(districtID, 10)}
}

func (k Key) String() string {
	if k.id == "" {
		return string(k.kind)
	}
	return string(k.kind) + ":" + k.id
}

type Cache struct {
	backend Backend
	prefix  string
}

// New wraps backend. A nil backend yields a cache that always misses.
func New(backend Backend, prefix string) *Cache {
	return &Cache{backend: backend, prefix: prefix}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.backend != nil
}

func (c *Cache) Get(ctx context.Context, key Key) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	data, ok, err := c.backend.Get(ctx, c.prefix+key.String())
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		logger.Debug("Cache get failed", zap.String("key", key.String()), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(key.kind)).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(string(key.kind)).Inc()
	return data, true
}

func (c *Cache) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := c.backend.Set(ctx, c.prefix+key.String(), value, ttl); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		logger.Debug("Cache set failed", zap.String("key", key.String()), zap.Error(err))
	}
}

// GetJSON decodes the cached value for key into dst. Undecodable entries
// count as a miss.
func (c *Cache) GetJSON(ctx context.Context, key Key, dst any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		logger.Debug("Cache entry undecodable", zap.String("key", key.String()), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key Key, v any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("encode").Inc()
		logger.Debug("Cache entry unencodable", zap.String("key", key.String()), zap.Error(err))
		return
	}
	c.Set(ctx, key, data, ttl)
}
