// internal/storage/redis_backend.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend 以Redis为介质的缓存后端，多实例部署时共享缓存
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend 创建Redis缓存后端并验证连通性
func NewRedisBackend(ctx context.Context, addr, password string, db int, prefix string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if prefix == "" {
		prefix = "courseforge:cache:"
	}

	return &RedisBackend{client: client, prefix: prefix}, nil
}

// Get 读取Redis键
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set 写入Redis键
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// Delete 删除Redis键
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close 关闭底层连接
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
