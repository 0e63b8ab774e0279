// Package redis holds the Redis-backed token lease and event publisher.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/dexarb/internal/apperror"
)

// ClientConfig holds connection parameters.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.ConnectionFailure("redis: ping "+cfg.Addr, err)
	}
	return rdb, nil
}
