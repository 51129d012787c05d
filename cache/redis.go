// Package cache keeps the aggregated policy report in Redis between writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/policy"
)

// ReportKey is the Redis key holding the aggregated report.
const ReportKey = "insuredmine:policies:aggregated"

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ReportCache implements policy.ReportCache on top of Redis.
type ReportCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache connects to Redis and verifies the connection with a ping.
func NewReportCache(ctx context.Context, cfg Config, logger *zap.Logger) (*ReportCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", cfg.Addr, err)
	}

	logger = logger.Named("report-cache")
	logger.Info("connected to redis", zap.String("addr", cfg.Addr))

	return &ReportCache{rdb: rdb, ttl: cfg.TTL, logger: logger}, nil
}

// Get returns the cached report. ok is false on a miss.
func (c *ReportCache) Get(ctx context.Context) ([]policy.UserAggregate, bool, error) {
	raw, err := c.rdb.Get(ctx, ReportKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get report: %w", err)
	}

	report, err := decodeReport(raw)
	if err != nil {
		return nil, false, err
	}
	return report, true, nil
}

// Set stores report with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, report []policy.UserAggregate) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache: encode report: %w", err)
	}
	if err := c.rdb.Set(ctx, ReportKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set report: %w", err)
	}
	return nil
}

// Invalidate drops the cached report.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, ReportKey).Err(); err != nil {
		return fmt.Errorf("cache: invalidate report: %w", err)
	}
	c.logger.Debug("aggregated report invalidated")
	return nil
}

// Close closes the Redis connection.
func (c *ReportCache) Close() error {
	return c.rdb.Close()
}

func decodeReport(raw []byte) ([]policy.UserAggregate, error) {
	report := make([]policy.UserAggregate, 0)
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("cache: decode report: %w", err)
	}
	return report, nil
}
