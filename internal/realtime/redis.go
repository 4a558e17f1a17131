package realtime

import (
	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/config"
)

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
