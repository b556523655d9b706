package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"copilot/internal/pkg/storage"
)

// OSSStorage 阿里云OSS键值存储，每个 key 对应一个对象
type OSSStorage struct {
	bucket *oss.Bucket
	prefix string
}

// NewOSSStorage 创建阿里云OSS存储
func NewOSSStorage(endpoint, bucketName, accessKeyID, accessKeySecret, prefix string) (*OSSStorage, error) {
	// 创建OSS客户端
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	// 获取Bucket
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSStorage{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Get 读取 key
func (s *OSSStorage) Get(ctx context.Context, key string) (string, bool, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", false, err
	}

	body, err := s.bucket.GetObject(objectKey, oss.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to download object: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read object: %w", err)
	}
	return string(data), true, nil
}

// Set 写入 key
func (s *OSSStorage) Set(ctx context.Context, key, value string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	options := []oss.Option{
		oss.ContentType("application/json"),
		oss.WithContext(ctx),
	}

	if err := s.bucket.PutObject(objectKey, strings.NewReader(value), options...); err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Delete 删除 key
func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(objectKey, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetStorageType 获取存储类型
func (s *OSSStorage) GetStorageType() string {
	return string(storage.StorageTypeOSS)
}

func (s *OSSStorage) objectKey(key string) (string, error) {
	key = strings.Trim(key, "/")
	if key == "" {
		return "", storage.ErrInvalidKey
	}
	if s.prefix == "" {
		return key + ".json", nil
	}
	return s.prefix + "/" + key + ".json", nil
}

// isNotFound 判断是否为对象不存在
func isNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound || svcErr.Code == "NoSuchKey"
	}
	return false
}
