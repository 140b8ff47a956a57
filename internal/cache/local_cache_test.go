package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache[V any](maxSize int, ttl time.Duration) (*LocalCache[V], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLocalCache[V](maxSize, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLocalCache(t *testing.T) {
	t.Run("读写与过期", func(t *testing.T) {
		c, clock := newTestCache[string](10, time.Minute)
		c.Set("a", "1", 0)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, "1", v)

		clock.Advance(2 * time.Minute)
		_, ok = c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("覆盖写入不增加条目数", func(t *testing.T) {
		c, _ := newTestCache[int](10, time.Minute)
		c.Set("a", 1, 0)
		c.Set("a", 2, 0)
		assert.Equal(t, 1, c.Len())
		v, _ := c.Get("a")
		assert.Equal(t, 2, v)
	})

	t.Run("超过容量时淘汰", func(t *testing.T) {
		c, clock := newTestCache[int](2, time.Minute)
		c.Set("old", 1, time.Second)
		c.Set("b", 2, 0)
		clock.Advance(2 * time.Second)

		c.Set("c", 3, 0)
		assert.Equal(t, 2, c.Len())
		_, ok := c.Get("old")
		assert.False(t, ok)

		c.Set("d", 4, 0)
		assert.Equal(t, 2, c.Len())
		_, ok = c.Get("d")
		assert.True(t, ok)
	})

	t.Run("GetOrCreate 只创建一次", func(t *testing.T) {
		c, _ := newTestCache[int](0, time.Minute)
		calls := 0
		create := func() int { calls++; return 7 }

		assert.Equal(t, 7, c.GetOrCreate("k", 0, create))
		assert.Equal(t, 7, c.GetOrCreate("k", 0, create))
		assert.Equal(t, 1, calls)
	})

	t.Run("Purge 与 Clear", func(t *testing.T) {
		c, clock := newTestCache[int](0, time.Minute)
		c.Set("a", 1, time.Second)
		c.Set("b", 2, 0)
		clock.Advance(5 * time.Second)

		assert.Equal(t, 1, c.Purge())
		assert.Equal(t, 1, c.Len())

		c.Clear()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("Run 随 context 退出", func(t *testing.T) {
		c, _ := newTestCache[int](0, time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			c.Run(ctx, 10*time.Millisecond)
			close(done)
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after cancel")
		}
	})
}
