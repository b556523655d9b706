package storage

import (
	"context"
	"errors"
)

// KV 持久化键值存储接口
// 实现应保证并发安全；调用方把所有错误视为尽力而为（best-effort）
type KV interface {
	// Get 读取 key，不存在时返回 ("", false, nil)
	Get(ctx context.Context, key string) (string, bool, error)

	// Set 写入 key
	Set(ctx context.Context, key, value string) error

	// Delete 删除 key，不存在视为成功
	Delete(ctx context.Context, key string) error

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal  StorageType = "local"  // 本地文件系统
	StorageTypeMemory StorageType = "memory" // 进程内存
	StorageTypeRedis  StorageType = "redis"  // Redis
	StorageTypeMongo  StorageType = "mongo"  // MongoDB
	StorageTypeOSS    StorageType = "oss"    // 阿里云OSS
)

// ErrInvalidKey key 为空或非法
var ErrInvalidKey = errors.New("storage: invalid key")
