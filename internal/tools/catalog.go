package tools

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EnabledFunc 查询模型后端是否可用
type EnabledFunc func(ctx context.Context) (bool, error)

// CatalogValue 缓存的可用性与工具列表
type CatalogValue struct {
	Enabled bool
	Tools   []Tool
}

// Catalog 工具目录缓存
// 以客户端代数为键：同一代只拉取一次，调用方替换客户端（重连）时递增代数使缓存失效
type Catalog struct {
	enabled EnabledFunc

	mu         sync.Mutex
	value      *CatalogValue
	generation uint64
}

// NewCatalog 创建工具目录缓存
func NewCatalog(enabled EnabledFunc) *Catalog {
	return &Catalog{enabled: enabled}
}

// Load 返回 generation 代客户端的缓存值，必要时重新拉取
// 后端未启用时缓存 {false, nil}；没有工具客户端时后端可用但不提供工具；拉取失败不缓存
func (c *Catalog) Load(ctx context.Context, client Client, generation uint64) (CatalogValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil && c.generation == generation {
		return cloneValue(*c.value), nil
	}

	enabled := true
	if c.enabled != nil {
		ok, err := c.enabled(ctx)
		if err != nil {
			return CatalogValue{}, err
		}
		enabled = ok
	}

	var value CatalogValue
	switch {
	case !enabled:
		value = CatalogValue{Enabled: false}
	case client == nil:
		log.Warn().Msg("no tool client configured, running without tools")
		value = CatalogValue{Enabled: true}
	default:
		list, err := client.ListTools(ctx)
		if err != nil {
			return CatalogValue{}, err
		}
		value = CatalogValue{Enabled: true, Tools: list}
		log.Info().Int("tools", len(list)).Msg("tool catalog loaded")
	}

	c.value = &value
	c.generation = generation
	return cloneValue(value), nil
}

// Invalidate 清除缓存，下次 Load 重新拉取
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}

// FilterAllowed 只保留允许列表中的工具，保持原有顺序
func FilterAllowed(list []Tool, allowList []string) []Tool {
	allowed := make(map[string]struct{}, len(allowList))
	for _, name := range allowList {
		allowed[name] = struct{}{}
	}
	out := make([]Tool, 0, len(allowList))
	for _, t := range list {
		if _, ok := allowed[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

func cloneValue(v CatalogValue) CatalogValue {
	if v.Tools != nil {
		v.Tools = append([]Tool(nil), v.Tools...)
	}
	return v
}
