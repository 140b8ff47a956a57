// Package ratelimit 提供按客户端 IP 的固定窗口限流。
package ratelimit

import (
	"context"
	"sync"
	"time"

	"stealthmail/backend/internal/cache"
)

// Rule 限流规则：每个窗口内最多 Max 次请求
type Rule struct {
	Name   string
	Window time.Duration
	Max    int
}

// Decision 一次限流判定的结果
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter 限流后端
type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (Decision, error)
}

type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// MemoryLimiter 进程内固定窗口限流器
type MemoryLimiter struct {
	windows *cache.LocalCache[*window]
	now     func() time.Time
}

// NewMemoryLimiter 创建内存限流器
//
// 参数:
//   - maxKeys: 同时跟踪的最大键数量，0 表示不限
func NewMemoryLimiter(maxKeys int) *MemoryLimiter {
	return &MemoryLimiter{
		windows: cache.NewLocalCache[*window](maxKeys, 15*time.Minute),
		now:     time.Now,
	}
}

// Allow 计数并判断本次请求是否放行
func (l *MemoryLimiter) Allow(_ context.Context, rule Rule, key string) (Decision, error) {
	now := l.now()
	w := l.windows.GetOrCreate(rule.Name+":"+key, rule.Window, func() *window {
		return &window{resetAt: now.Add(rule.Window)}
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(rule.Window)
	}
	w.count++

	return decide(rule, w.count, w.resetAt.Sub(now)), nil
}

// Run 周期清理过期窗口，直到 ctx 结束
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	l.windows.Run(ctx, interval)
}

func decide(rule Rule, count int, resetAfter time.Duration) Decision {
	remaining := rule.Max - count
	if remaining < 0 {
		remaining = 0
	}
	if resetAfter < 0 {
		resetAfter = 0
	}
	return Decision{
		Allowed:    count <= rule.Max,
		Limit:      rule.Max,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}
