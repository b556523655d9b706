package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"copilot/internal/pkg/mongodb"
	"copilot/internal/pkg/storage"
)

// CollectionName 键值集合名
const CollectionName = "copilot_kv"

// entry 键值文档
type entry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Collection 返回集合名称
func (entry) Collection() string {
	return CollectionName
}

// EnsureIndexes 创建索引
func (e entry) EnsureIndexes(ctx context.Context, db *mongodriver.Database) error {
	return mongodb.CreateIndexes(ctx, db.Collection(e.Collection()), []mongodriver.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_updated_at"),
		},
	})
}

// MongoStorage MongoDB 键值存储
type MongoStorage struct {
	client     *mongodb.Client
	collection *mongodriver.Collection
}

// NewMongoStorage 创建 MongoDB 键值存储并确保索引
func NewMongoStorage(ctx context.Context, client *mongodb.Client) (*MongoStorage, error) {
	if err := mongodb.EnsureAllIndexes(ctx, client.Database(), entry{}); err != nil {
		return nil, err
	}
	return &MongoStorage{
		client:     client,
		collection: client.Collection(CollectionName),
	}, nil
}

// Get 读取 key
func (s *MongoStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, storage.ErrInvalidKey
	}
	var doc entry
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, err
	}
	return doc.Value, true, nil
}

// Set 写入 key（upsert）
func (s *MongoStorage) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	update := bson.M{
		"$set": bson.M{"value": value, "updated_at": time.Now()},
	}
	_, err := s.collection.UpdateByID(ctx, key, update, options.Update().SetUpsert(true))
	return err
}

// Delete 删除 key
func (s *MongoStorage) Delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// GetStorageType 获取存储类型
func (s *MongoStorage) GetStorageType() string {
	return string(storage.StorageTypeMongo)
}

// Close 断开连接
func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
