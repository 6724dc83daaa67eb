// internal/storage/cache_backend.go
package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CacheBackend 字符串键的通用缓存后端接口
// 上层缓存服务对存储介质保持无感知
type CacheBackend interface {
	// Get 读取键值，第二个返回值表示是否命中
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set 写入键值，ttl为0表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除键
	Delete(ctx context.Context, key string) error
}

// MemoryBackend 进程内缓存后端，带TTL与最近最少读取淘汰
type MemoryBackend struct {
	entries    map[string]*memoryEntry
	mutex      sync.RWMutex
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 默认过期时间
}

type memoryEntry struct {
	data      []byte
	createdAt time.Time
	lastRead  time.Time
	expiresAt time.Time // 零值表示不过期
}

// NewMemoryBackend 创建内存缓存后端
func NewMemoryBackend(maxSize int, expiration time.Duration) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = 1000 // 默认缓存1000个条目
	}

	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	return &MemoryBackend{
		entries:    make(map[string]*memoryEntry),
		maxSize:    maxSize,
		expiration: expiration,
	}
}

// Get 读取缓存条目并刷新最后读取时间
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.entries[key]
	if !exists {
		return nil, false, nil
	}

	// 检查是否过期
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}

	entry.lastRead = time.Now()
	return entry.data, true, nil
}

// Set 写入缓存条目，超出容量时清理最少读取的条目
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if ttl <= 0 {
		ttl = m.expiration
	}

	now := time.Now()
	m.entries[key] = &memoryEntry{
		data:      value,
		createdAt: now,
		lastRead:  now,
		expiresAt: now.Add(ttl),
	}

	// 如果缓存太大，清理最少使用的条目（约20%）
	if len(m.entries) > m.maxSize {
		toRemove := m.maxSize / 5
		if toRemove < 1 {
			toRemove = 1
		}
		m.cleanupLRU(toRemove)
	}

	return nil
}

// Delete 删除缓存条目
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.entries, key)
	return nil
}

// Len 返回当前条目数
func (m *MemoryBackend) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}

// cleanupLRU 清理最少读取的条目，调用方需持有写锁
func (m *MemoryBackend) cleanupLRU(count int) {
	type keyAge struct {
		key  string
		time time.Time
	}

	entries := make([]keyAge, 0, len(m.entries))
	for k, v := range m.entries {
		entries = append(entries, keyAge{k, v.lastRead})
	}

	// 按最后读取时间排序
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	maxToDelete := count
	if maxToDelete > len(entries) {
		maxToDelete = len(entries)
	}
	for i := 0; i < maxToDelete; i++ {
		delete(m.entries, entries[i].key)
	}
}
