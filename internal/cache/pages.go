package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
)

// pagesPrefix 页面文本缓存键前缀
const pagesPrefix = "pages"

// PageCache 按文件内容校验和缓存逐页文本
// 同一份报告重复上传时可以跳过PDF文本抽取
type PageCache struct {
	cache Cache
	ttl   time.Duration
}

// NewPageCache 在通用缓存之上创建页面缓存
func NewPageCache(c Cache, ttl time.Duration) *PageCache {
	return &PageCache{cache: c, ttl: ttl}
}

// Get 读取缓存的页面文本
func (p *PageCache) Get(checksum string) ([]issue.PageText, bool, error) {
	raw, found, err := p.cache.Get(GenerateCacheKey(pagesPrefix, checksum))
	if err != nil || !found {
		return nil, false, err
	}

	var pages []issue.PageText
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		// 损坏的缓存项直接丢弃
		_ = p.cache.Delete(GenerateCacheKey(pagesPrefix, checksum))
		return nil, false, fmt.Errorf("failed to decode cached pages: %w", err)
	}
	return pages, true, nil
}

// Set 缓存页面文本
func (p *PageCache) Set(checksum string, pages []issue.PageText) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("failed to encode pages: %w", err)
	}
	return p.cache.Set(GenerateCacheKey(pagesPrefix, checksum), string(data), p.ttl)
}

// Delete 删除缓存的页面文本
func (p *PageCache) Delete(checksum string) error {
	return p.cache.Delete(GenerateCacheKey(pagesPrefix, checksum))
}
