package copilot

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"copilot/internal/model"
	httputil "copilot/internal/pkg/http"
)

// StateResponseData 当前状态响应数据
type StateResponseData struct {
	Enabled bool `json:"enabled"` // 后端是否可用
	model.Snapshot
}

// GetState 获取当前对话状态
// @Summary      获取对话状态
// @Tags         Copilot
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "data 为 StateResponseData"
// @Failure      502  {object}  ErrorResponse  "工具目录加载失败"
// @Router       /api/v1/copilot/state [get]
func (h *Handler) GetState(c *gin.Context) {
	enabled, err := h.svc.Enabled(c.Request.Context())
	if err != nil {
		c.JSON(httputil.StatusOf(50201), httputil.NewErrorResponse(50201, "Failed to load tool catalog", err.Error()))
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", StateResponseData{
		Enabled:  enabled,
		Snapshot: h.svc.Snapshot(),
	}))
}
