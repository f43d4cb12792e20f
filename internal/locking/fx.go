package locking

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/splitnest/splitnest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Warn("redis not configured, house locks are process-local")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("locking",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewKeyedLock),
)
