package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinForge/internal/domain/models"
	pkgcache "FinForge/pkg/cache"
)

// ErrReportNotFound is returned when no report is cached for a destination.
var ErrReportNotFound = errors.New("run report not found")

// RedisRunCache keeps the most recent run report per destination.
type RedisRunCache struct {
	cache pkgcache.Service
	ttl   time.Duration
}

func NewRedisRunCache(cache pkgcache.Service, ttl time.Duration) *RedisRunCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisRunCache{cache: cache, ttl: ttl}
}

func (c *RedisRunCache) PutReport(ctx context.Context, destination string, report *models.RunReport) error {
	if err := c.cache.Set(ctx, reportKey(destination), report, c.ttl); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

func (c *RedisRunCache) GetReport(ctx context.Context, destination string) (*models.RunReport, error) {
	var report models.RunReport
	err := c.cache.Get(ctx, reportKey(destination), &report)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("load report: %w", err)
	}
	return &report, nil
}

func reportKey(destination string) string {
	return "runs:latest:" + destination
}
