// Package bootstrap opens the optional external dependencies shared by the
// API server and the ETL job.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/cache"
	"github.com/mgnrega-tn/backend/internal/cache/memory"
	"github.com/mgnrega-tn/backend/internal/cache/redis"
	"github.com/mgnrega-tn/backend/internal/storage/sqlstore"
	"github.com/mgnrega-tn/backend/pkg/config"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// OpenStore connects to the primary store and creates the schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*sqlstore.Client, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = sqlstore.DriverSQLite
	}
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = sqlstore.DriverPostgres
	}

	client, err := sqlstore.NewClient(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := client.InitSchema(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// OpenRedis returns nil without error when url is empty.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return redis.NewClient(dialCtx, url)
}

// NewCache picks the result cache backend. An unreachable Redis degrades to
// no caching rather than failing startup.
func NewCache(cfg config.CacheConfig, redisClient *redis.Client) *cache.Cache {
	switch strings.ToLower(cfg.Backend) {
	case CacheNone:
		logger.Info("Result cache disabled")
		return cache.New(nil, cfg.Prefix)
	case CacheMemory:
		logger.Info("Using in-process result cache", zap.Duration("ttl", cfg.TTL()))
		return cache.New(memory.New(cfg.TTL()), cfg.Prefix)
	default:
		if redisClient == nil {
			logger.Warn("Redis not available, result cache disabled")
			return cache.New(nil, cfg.Prefix)
		}
		logger.Info("Using Redis result cache", zap.Duration("ttl", cfg.TTL()))
		return cache.New(redisClient, cfg.Prefix)
	}
}
