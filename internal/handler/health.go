package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// EnabledChecker 就绪检查依赖
type EnabledChecker interface {
	Enabled(ctx context.Context) (bool, error)
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	checker EnabledChecker
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checker EnabledChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health 健康检查
// @Summary      健康检查
// @Tags         系统
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，模型后端未启用或工具目录加载失败时返回 503
// @Summary      就绪检查
// @Tags         系统
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	enabled, err := h.checker.Enabled(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	if !enabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "disabled",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
