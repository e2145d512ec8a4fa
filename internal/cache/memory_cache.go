package cache

import (
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache的进程内缓存
// 设置了MaxEntries时，写满后先淘汰最早过期的项
type MemoryCache struct {
	items      *gocache.Cache
	maxEntries int
	mu         sync.Mutex // 保证淘汰和写入的原子性
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &MemoryCache{
		items:      gocache.New(ttl, interval),
		maxEntries: config.MaxEntries,
	}, nil
}

// Get 读取缓存
func (m *MemoryCache) Get(key string) (string, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

// Set 写入缓存，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxEntries > 0 {
		if _, exists := m.items.Get(key); !exists {
			m.evict()
		}
	}
	m.items.Set(key, value, ttl)
	return nil
}

// evict 写满时先清理过期项，再按过期时间从早到晚淘汰
// 永不过期的项最后淘汰
func (m *MemoryCache) evict() {
	m.items.DeleteExpired()
	for m.items.ItemCount() >= m.maxEntries {
		oldest, at := "", int64(math.MaxInt64)
		for k, item := range m.items.Items() {
			exp := item.Expiration
			if exp == 0 {
				exp = math.MaxInt64
			}
			if oldest == "" || exp < at {
				oldest, at = k, exp
			}
		}
		if oldest == "" {
			return
		}
		m.items.Delete(oldest)
	}
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(key string) error {
	m.items.Delete(key)
	return nil
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear() error {
	m.items.Flush()
	return nil
}

// Len 返回未过期的缓存项数量
func (m *MemoryCache) Len() int {
	return len(m.items.Items())
}

func init() {
	RegisterCache(TypeMemory, NewMemoryCache)
}
