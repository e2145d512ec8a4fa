package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownType 没有注册的缓存类型
var ErrUnknownType = errors.New("unknown cache type")

// 内置缓存类型
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Cache 字符串键值缓存
// 页面文本缓存以JSON字符串的形式存放在这里
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory 按配置创建缓存
type Factory func(config Config) (Cache, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterCache 注册缓存实现，同名实现会被覆盖
func RegisterCache(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Types 返回已注册的缓存类型
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// NewCache 按Type创建缓存，Type为空时使用内存缓存
func NewCache(config Config) (Cache, error) {
	name := config.Type
	if name == "" {
		name = TypeMemory
	}

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownType, name, strings.Join(Types(), ", "))
	}
	return factory(config)
}

// Config 缓存配置
type Config struct {
	Type            string        // 缓存类型：memory、redis
	RedisAddr       string        // Redis地址
	RedisPassword   string        // Redis密码
	RedisDB         int           // Redis数据库编号
	Prefix          string        // 键前缀，Redis缓存只清理该前缀下的键
	DefaultTTL      time.Duration // ttl为0时使用的过期时间
	CleanupInterval time.Duration // 过期键清理间隔，仅内存缓存使用
	MaxEntries      int           // 内存缓存最多保存的项数，0表示不限制
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            TypeMemory,
		Prefix:          "splitter",
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
		MaxEntries:      256,
	}
}

// GenerateCacheKey 用冒号拼接缓存键
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}
