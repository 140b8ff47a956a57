package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stealthmail/backend/internal/config"
)

// RedisLimiter 基于 Redis 计数器的固定窗口限流器，多个实例共享同一计数
type RedisLimiter struct {
	rdb    *goredis.Client
	log    *zap.Logger
	prefix string
}

// NewRedisLimiter 连接 Redis 并创建限流器
func NewRedisLimiter(cfg config.RedisConfig, log *zap.Logger) (*RedisLimiter, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &RedisLimiter{rdb: rdb, log: log, prefix: "stealthmail:ratelimit:"}, nil
}

// Allow 计数并判断本次请求是否放行
//
// 窗口从该键第一次计数开始，过期时间只在新键上设置一次。
func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	k := l.prefix + rule.Name + ":" + key

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", rule.Name, err)
	}

	resetAfter := ttl.Val()
	if resetAfter < 0 {
		if err := l.rdb.PExpire(ctx, k, rule.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit %s: %w", rule.Name, err)
		}
		resetAfter = rule.Window
	}

	return decide(rule, int(incr.Val()), resetAfter), nil
}

// Ping 检查 Redis 连接
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (l *RedisLimiter) Close() error {
	if err := l.rdb.Close(); err != nil {
		l.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	l.log.Info("Redis connection closed")
	return nil
}
