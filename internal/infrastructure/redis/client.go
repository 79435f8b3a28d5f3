package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/agrismart-api/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and pings it once so misconfiguration fails at
// startup rather than on the first OTP request.
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
