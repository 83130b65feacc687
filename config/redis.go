package config

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

// ConnectRedis connects when REDIS_URL is set; without it redis stays disabled
func ConnectRedis(cfg *Config) error {
	if cfg.RedisURL == "" {
		GetLogger().Info("REDIS_URL not set, directory cache and recurrence locks disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	rdb = client
	locker = redislock.New(client)
	GetLogger().Info("Redis connection established successfully")
	return nil
}

// GetRedis returns the redis client, or nil when redis is disabled
func GetRedis() *redis.Client {
	return rdb
}

// GetRedisLock returns the lock client, or nil when redis is disabled
func GetRedisLock() *redislock.Client {
	return locker
}
