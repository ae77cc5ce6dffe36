package database

import (
	"context"
	"taskreward-backend/config"

	"github.com/go-redis/redis/v8"
)

var (
	RedisClient *redis.Client
	Ctx         = context.Background()
)

// ConnectRedis connects the shared client. It is a no-op when no Redis host
// is configured.
func ConnectRedis(cfg *config.Config) error {
	if !cfg.RedisEnabled() {
		return nil
	}
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisFullAddr(),
		Password: cfg.RedisPassword,
		DB:       0, // use default DB
	})

	_, err := RedisClient.Ping(Ctx).Result()
	return err
}
