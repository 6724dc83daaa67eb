// internal/storage/file_backend.go
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileBackend 以JSON文件为介质的缓存后端
// 每个键对应一个文件，重启后缓存仍然有效
type FileBackend struct {
	baseDir string
}

// fileEnvelope 写入磁盘的信封结构，携带过期时间
type fileEnvelope struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NewFileBackend 创建文件缓存后端
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	return &FileBackend{baseDir: baseDir}, nil
}

// pathForKey 键名经哈希后作为文件名，避免特殊字符
func (f *FileBackend) pathForKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.baseDir, fmt.Sprintf("%x.json", sum[:16]))
}

// Get 读取缓存文件
func (f *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := f.pathForKey(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("读取缓存文件失败: %w", err)
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		// 损坏的缓存文件按未命中处理并删除
		os.Remove(path)
		return nil, false, nil
	}

	if !envelope.ExpiresAt.IsZero() && time.Now().After(envelope.ExpiresAt) {
		os.Remove(path)
		return nil, false, nil
	}

	return envelope.Data, true, nil
}

// Set 写入缓存文件
func (f *FileBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	envelope := fileEnvelope{
		Key:       key,
		Data:      value,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		envelope.ExpiresAt = time.Now().Add(ttl)
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化缓存条目失败: %w", err)
	}

	return os.WriteFile(f.pathForKey(key), data, 0644)
}

// Delete 删除缓存文件
func (f *FileBackend) Delete(_ context.Context, key string) error {
	err := os.Remove(f.pathForKey(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
