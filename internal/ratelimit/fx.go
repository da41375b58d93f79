package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/saasykit/atlas/internal/config"
	"go.uber.org/fx"
)

func provideRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

// Module wires the optional redis client and the worker lock.
var Module = fx.Module("ratelimit",
	fx.Provide(provideRedis),
	fx.Provide(NewLocker),
)
