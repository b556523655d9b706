package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"copilot/internal/config"
	"copilot/internal/pkg/storage"
)

// DefaultKeyPrefix 默认 key 前缀
const DefaultKeyPrefix = "copilot:"

// RedisStorage Redis 键值存储
type RedisStorage struct {
	client *goredis.Client
	prefix string
}

// NewRedisStorage 创建 Redis 存储并测试连接
func NewRedisStorage(cfg *config.RedisConfig) (*RedisStorage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisStorageWithClient(client, cfg.Prefix), nil
}

// NewRedisStorageWithClient 使用已有客户端创建存储
func NewRedisStorageWithClient(client *goredis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}
}

// Get 读取 key
func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, storage.ErrInvalidKey
	}
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// Set 写入 key（不过期）
func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

// Delete 删除 key
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// GetStorageType 获取存储类型
func (s *RedisStorage) GetStorageType() string {
	return string(storage.StorageTypeRedis)
}

// Close 关闭连接
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Client 获取原始客户端
func (s *RedisStorage) Client() *goredis.Client {
	return s.client
}
