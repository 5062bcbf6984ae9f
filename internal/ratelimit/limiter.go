package ratelimit

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/condoledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyWrite = "ratelimit:write:"

var ErrRedisRequired = errors.New("rate limiting requires REDIS_ADDR")

// WriteLimiter bounds the mutating requests of one authenticated subject.
// A nil limiter allows everything.
type WriteLimiter struct {
	bucket *TokenBucket
	prefix string
	rate   float64
	burst  int
}

func NewWriteLimiter(bucket *TokenBucket, prefix string, rate float64, burst int) *WriteLimiter {
	return &WriteLimiter{
		bucket: bucket,
		prefix: prefix + keyWrite,
		rate:   rate,
		burst:  burst,
	}
}

func (l *WriteLimiter) Allow(ctx context.Context, subject string) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, l.prefix+strings.TrimSpace(subject), l.rate, l.burst)
}

// Provide returns nil when rate limiting is disabled.
func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return nil, ErrRedisRequired
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errInvalidLimits
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	log.Info("write rate limiting enabled",
		zap.Float64("rate", limitCfg.WriteRate),
		zap.Int("burst", limitCfg.WriteBurst),
	)
	return NewWriteLimiter(NewTokenBucket(client), cfg.AppName+":", limitCfg.WriteRate, limitCfg.WriteBurst), nil
}
