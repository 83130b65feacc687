package services

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// Locker serialises work on a key across server instances
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker implements Locker with redislock
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, Conflict("OPERATION_IN_PROGRESS", "Another request is already working on this resource")
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

// NoopLocker is used when redis is not configured
type NoopLocker struct{}

func (NoopLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return func() {}, nil
}
