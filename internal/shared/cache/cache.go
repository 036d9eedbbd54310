package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis abre e valida a conexão com o Redis.
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
