package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"copilot/internal/model"
	"copilot/internal/pkg/storage"
)

// DefaultStorageKey 对话列表的存储 key
const DefaultStorageKey = "grafana-copilot-conversations"

// DefaultMaxConversations 最多保留的对话数
const DefaultMaxConversations = 20

// ConversationRepo 对话仓库
// 所有对话以 JSON 数组形式存放在同一个 key 下；读写均为尽力而为，存储错误只记录日志
type ConversationRepo struct {
	kv    storage.KV
	key   string
	limit int
	mu    sync.Mutex
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(kv storage.KV, key string, limit int) *ConversationRepo {
	if key == "" {
		key = DefaultStorageKey
	}
	if limit <= 0 {
		limit = DefaultMaxConversations
	}
	return &ConversationRepo{kv: kv, key: key, limit: limit}
}

// LoadLatest 读取最近更新的对话
func (r *ConversationRepo) LoadLatest(ctx context.Context) (*model.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	convs := r.readAll(ctx)
	if len(convs) == 0 {
		return nil, false
	}
	latest := convs[0]
	return &latest, true
}

// Get 根据 ID 查询
func (r *ConversationRepo) Get(ctx context.Context, id string) (*model.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.readAll(ctx) {
		if c.ID == id {
			conv := c
			return &conv, true
		}
	}
	return nil, false
}

// List 按更新时间倒序列出对话
func (r *ConversationRepo) List(ctx context.Context) []model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.readAll(ctx)
}

// Save 按 ID 插入或替换对话，并截断到上限
// 没有消息的对话不会被保存
func (r *ConversationRepo) Save(ctx context.Context, conv model.Conversation) {
	if conv.ID == "" || len(conv.Messages) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conv.Messages = model.CloneMessages(conv.Messages)

	existing := r.readAll(ctx)
	updated := make([]model.Conversation, 0, len(existing)+1)
	updated = append(updated, conv)
	for _, c := range existing {
		if c.ID != conv.ID {
			updated = append(updated, c)
		}
	}

	sortByUpdated(updated)
	if len(updated) > r.limit {
		updated = updated[:r.limit]
	}

	r.writeAll(ctx, updated)
}

// Remove 删除对话
func (r *ConversationRepo) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.readAll(ctx)
	filtered := existing[:0]
	for _, c := range existing {
		if c.ID != id {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == len(existing) {
		return
	}
	r.writeAll(ctx, filtered)
}

func (r *ConversationRepo) readAll(ctx context.Context) []model.Conversation {
	if r.kv == nil {
		return nil
	}

	raw, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("failed to load conversations")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var convs []model.Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("stored conversations are corrupt, ignoring")
		return nil
	}

	sortByUpdated(convs)
	return convs
}

func (r *ConversationRepo) writeAll(ctx context.Context, convs []model.Conversation) {
	if r.kv == nil {
		return
	}

	if convs == nil {
		convs = []model.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode conversations")
		return
	}
	if err := r.kv.Set(ctx, r.key, string(data)); err != nil {
		log.Warn().Err(err).Str("key", r.key).Str("storage", r.kv.GetStorageType()).Msg("failed to save conversations")
	}
}

func sortByUpdated(convs []model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}
