// Package runlock keeps two validation loops from running against the same development
// database at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/config"
)

// ValidateKey guards validation loop runs.
const ValidateKey = "crm:sync:validate"

// ErrLockNotObtained is returned when another run holds the lock.
var ErrLockNotObtained = errors.New("another sync run is in progress")

// Locker serializes runs.
type Locker interface {
	// Obtain takes the lock for key or fails with ErrLockNotObtained. The returned function
	// releases it.
	Obtain(ctx context.Context, key string) (release func(), err error)
	Close() error
}

// New returns a redis-backed locker when cfg names a redis address, otherwise a local one.
func New(ctx context.Context, cfg config.LockConfig, logger *zap.Logger) (Locker, error) {
	if cfg.RedisAddr == "" {
		return NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return NewRedis(client, cfg.TTL, logger), nil
}

// Redis holds leases in redis, refreshing them while a run is in progress.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a Redis locker. The lease is refreshed every ttl/2 until released.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
		logger: logger.Named("runlock"),
	}
}

// Obtain takes the lease without waiting.
func (r *Redis) Obtain(ctx context.Context, key string) (func(), error) {
	lock, err := r.locker.Obtain(ctx, key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	r.logger.Debug("Lock obtained", zap.String("key", key), zap.Duration("ttl", r.ttl))

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(r.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := lock.Refresh(context.WithoutCancel(ctx), r.ttl, nil); err != nil {
					r.logger.Warn("Failed to refresh lock", zap.String("key", key), zap.Error(err))
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Local serializes runs inside one process.
type Local struct {
	held chan struct{}
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{held: make(chan struct{}, 1)}
}

// Obtain takes the lock without waiting. All keys share the one lock.
func (l *Local) Obtain(_ context.Context, key string) (func(), error) {
	select {
	case l.held <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.held }) }, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
}

// Close is a no-op.
func (l *Local) Close() error { return nil }
