package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/trends"
)

// newTrendsCache picks the validation cache backend: redis when an
// address is configured, the in-process cache otherwise.
func newTrendsCache(cfg *config.Config) trends.Cache {
	if cfg.Redis.Addr != "" {
		return trends.NewRedisCache(redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		}))
	}
	return trends.NewMemoryCache()
}
