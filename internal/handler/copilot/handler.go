package copilot

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"copilot/internal/pkg/ctxutil"
	httputil "copilot/internal/pkg/http"
	"copilot/internal/service"
)

// LocationHeader 宿主页面位置请求头
const LocationHeader = "X-Copilot-Location"

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// Handler Copilot 处理器
// 所有 copilot 相关的 Handler 方法都通过这个结构体访问 Service
type Handler struct {
	svc *service.CopilotService
}

// NewHandler 创建 Copilot 处理器
func NewHandler(svc *service.CopilotService) *Handler {
	return &Handler{svc: svc}
}

// Register 注册路由
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/copilot/state", h.GetState)
	r.GET("/copilot/events", h.Events)
	r.POST("/copilot/messages", h.SendMessage)
	r.POST("/copilot/retry", h.Retry)
	r.POST("/copilot/reset", h.Reset)
	r.GET("/copilot/conversations", h.ListConversations)
	r.POST("/copilot/conversations/:conversation_id/open", h.OpenConversation)
	r.DELETE("/copilot/conversations/:conversation_id", h.RemoveConversation)
}

// requestContext 将请求头中的页面位置注入 context
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if loc := c.GetHeader(LocationHeader); loc != "" {
		ctx = ctxutil.WithLocation(ctx, loc)
	}
	return ctx
}

// writeServiceError 将 Service 错误映射为 HTTP 响应
func writeServiceError(c *gin.Context, err error) {
	errorCode := 50001

	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		errorCode = 40002
	case errors.Is(err, service.ErrNothingToRetry):
		errorCode = 40003
	case errors.Is(err, service.ErrConversationNotFound):
		errorCode = 40401
	case errors.Is(err, service.ErrTurnInProgress):
		errorCode = 40901
	case errors.Is(err, service.ErrDisabled):
		errorCode = 50301
	}

	c.JSON(httputil.StatusOf(errorCode), httputil.NewErrorResponse(errorCode, err.Error()))
}
