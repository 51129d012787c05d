package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultConnectTimeout bounds the ping retries when no timeout is set.
const DefaultConnectTimeout = 30 * time.Second

// PoolOptions tunes pool construction. A zero MaxConns keeps the pgx default;
// a non-positive ConnectTimeout means DefaultConnectTimeout.
type PoolOptions struct {
	MaxConns       int32
	ConnectTimeout time.Duration
}

// NewPool constructs a pgx connection pool and waits until the database answers
// a ping, retrying with exponential backoff for up to ConnectTimeout.
func NewPool(ctx context.Context, connString string, opts PoolOptions, logger *zap.Logger) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("db: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: new pool: %w", err)
	}

	policy := retryPolicy(opts.ConnectTimeout)

	ping := func() error {
		return pool.Ping(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("database not ready, retrying",
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return pool, nil
}

// retryPolicy never returns an unbounded policy: backoff treats a zero
// MaxElapsedTime as retry forever.
func retryPolicy(timeout time.Duration) *backoff.ExponentialBackOff {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = timeout
	return policy
}
