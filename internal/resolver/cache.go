package resolver

import (
	"sync"
	"time"

	"github.com/ninja0404/whale-signal/pkg/clock"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache 带过期时间的并发安全缓存，同一个 key 后写覆盖先写
type TTLCache[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	clock clock.Clock
	items map[string]cacheEntry[V]
}

func NewTTLCache[V any](ttl time.Duration, clk clock.Clock) *TTLCache[V] {
	if clk == nil {
		clk = clock.Real()
	}
	return &TTLCache[V]{
		ttl:   ttl,
		clock: clk,
		items: make(map[string]cacheEntry[V]),
	}
}

// Get 过期的条目视为不存在
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok || c.clock.Now().Sub(e.storedAt) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.items[key] = cacheEntry[V]{value: value, storedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Purge 清理过期条目，返回清理数量
func (c *TTLCache[V]) Purge() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.items {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
