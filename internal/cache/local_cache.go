package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LocalCache 本地内存缓存
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期
// - 由 Run 驱动的定期清理，随 context 结束
// - 容量上限，满时先清理过期条目再淘汰任意一条
type LocalCache[V any] struct {
	data    sync.Map
	size    atomic.Int64
	mu      sync.Mutex // 串行化写入路径上的容量检查
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数，<=0 表示不限制
//   - ttl: 默认过期时间
func NewLocalCache[V any](maxSize int, ttl time.Duration) *LocalCache[V] {
	return &LocalCache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get 获取缓存值
func (c *LocalCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.data.Load(key)
	if !ok {
		return zero, false
	}

	entry := val.(*cacheEntry[V])
	if c.now().After(entry.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return entry.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (c *LocalCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	entry := &cacheEntry[V]{value: value, expiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, loaded := c.data.Swap(key, entry); loaded {
		return
	}
	c.size.Add(1)

	if c.maxSize > 0 && int(c.size.Load()) > c.maxSize {
		c.purgeExpired()
		if int(c.size.Load()) > c.maxSize {
			c.evictOne(key)
		}
	}
}

// GetOrCreate 返回已有值，不存在时用 create 创建并写入
func (c *LocalCache[V]) GetOrCreate(key string, ttl time.Duration, create func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}

	c.mu.Lock()
	if val, ok := c.data.Load(key); ok {
		entry := val.(*cacheEntry[V])
		if !c.now().After(entry.expiresAt) {
			c.mu.Unlock()
			return entry.value
		}
	}
	c.mu.Unlock()

	v := create()
	c.Set(key, v, ttl)
	return v
}

// Delete 删除缓存值
func (c *LocalCache[V]) Delete(key string) {
	if _, loaded := c.data.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// Clear 清空所有缓存
func (c *LocalCache[V]) Clear() {
	c.data.Range(func(key, _ any) bool {
		c.Delete(key.(string))
		return true
	})
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (c *LocalCache[V]) Len() int {
	return int(c.size.Load())
}

// Purge 立即清理过期条目，返回清理数量
func (c *LocalCache[V]) Purge() int {
	return c.purgeExpired()
}

// Run 定期清理过期条目，直到 ctx 结束
func (c *LocalCache[V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

func (c *LocalCache[V]) purgeExpired() int {
	now := c.now()
	removed := 0
	c.data.Range(func(key, value any) bool {
		entry := value.(*cacheEntry[V])
		if now.After(entry.expiresAt) {
			if _, loaded := c.data.LoadAndDelete(key); loaded {
				c.size.Add(-1)
				removed++
			}
		}
		return true
	})
	return removed
}

// evictOne 淘汰一条非 keep 的条目
func (c *LocalCache[V]) evictOne(keep string) {
	c.data.Range(func(key, _ any) bool {
		if key.(string) == keep {
			return true
		}
		if _, loaded := c.data.LoadAndDelete(key); loaded {
			c.size.Add(-1)
		}
		return false
	})
}
