package ctxutil

import (
	"context"

	"copilot/internal/model"
)

// locationKeyType 使用私有类型避免与其他 context key 冲突
type locationKeyType struct{}

var locationKey = locationKeyType{}

// Provider 宿主上下文提供者，每轮对话开始时调用一次
type Provider func(ctx context.Context) model.HostContext

// Static 返回固定位置提示的 Provider；context 中的位置优先
func Static(hint string) Provider {
	return func(ctx context.Context) model.HostContext {
		if loc, ok := Location(ctx); ok {
			return model.HostContext{LocationHint: loc}
		}
		return model.HostContext{LocationHint: hint}
	}
}

// WithLocation 将当前页面位置注入到 context 中
// 例如 HTTP 宿主从请求头读取后：
//
//	ctx := ctxutil.WithLocation(c.Request.Context(), c.GetHeader("X-Copilot-Location"))
func WithLocation(ctx context.Context, hint string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, locationKey, hint)
}

// Location 从 context 中解析位置提示
func Location(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(locationKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
