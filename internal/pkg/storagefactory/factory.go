package storagefactory

import (
	"context"
	"fmt"

	"copilot/internal/config"
	"copilot/internal/pkg/mongodb"
	"copilot/internal/pkg/storage"
	"copilot/internal/pkg/storage/local"
	"copilot/internal/pkg/storage/memory"
	mongostorage "copilot/internal/pkg/storage/mongo"
	"copilot/internal/pkg/storage/oss"
	redisstorage "copilot/internal/pkg/storage/redis"
)

// NewStorage 根据配置创建键值存储实例
func NewStorage(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	switch storage.StorageType(cfg.Storage.Type) {
	case storage.StorageTypeLocal, "":
		if cfg.Storage.Local == nil {
			return nil, fmt.Errorf("local storage config is required")
		}
		return local.NewLocalStorage(cfg.Storage.Local.BasePath)
	case storage.StorageTypeMemory:
		return memory.NewMemoryStorage(), nil
	case storage.StorageTypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis.addr is required for redis storage")
		}
		return redisstorage.NewRedisStorage(&cfg.Redis)
	case storage.StorageTypeMongo:
		client, err := mongodb.New(ctx, &cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongo: %w", err)
		}
		kv, err := mongostorage.NewMongoStorage(ctx, client)
		if err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return kv, nil
	case storage.StorageTypeOSS:
		if cfg.Storage.OSS == nil {
			return nil, fmt.Errorf("OSS storage config is required")
		}
		return oss.NewOSSStorage(
			cfg.Storage.OSS.Endpoint,
			cfg.Storage.OSS.Bucket,
			cfg.Storage.OSS.AccessKeyID,
			cfg.Storage.OSS.AccessKeySecret,
			cfg.Storage.OSS.Prefix,
		)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// Close 释放存储持有的连接（如有）
func Close(ctx context.Context, kv storage.KV) error {
	switch c := kv.(type) {
	case interface{ Close(context.Context) error }:
		return c.Close(ctx)
	case interface{ Close() error }:
		return c.Close()
	default:
		return nil
	}
}
