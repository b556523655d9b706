package copilot

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "copilot/internal/pkg/http"
)

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"` // 用户消息（必填）
}

// SendMessage 发送一条用户消息
// 消息追加后立即返回 202，对话在后台运行，进度通过 /copilot/events 推送
// @Summary      发送消息
// @Description  追加一条用户消息并在后台运行一轮对话，进度通过 /copilot/events 推送
// @Tags         Copilot
// @Accept       json
// @Produce      json
// @Param        X-Copilot-Location  header    string              false  "宿主当前页面"
// @Param        request             body      SendMessageRequest  true   "消息"
// @Success      202                 {object}  map[string]interface{}  "已受理，data 为当前快照"
// @Failure      400                 {object}  ErrorResponse  "消息为空"
// @Failure      409                 {object}  ErrorResponse  "已有对话在进行"
// @Failure      503                 {object}  ErrorResponse  "模型后端未启用"
// @Router       /api/v1/copilot/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	if err := h.svc.Submit(requestContext(c), req.Message); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, httputil.NewSuccessResponse("accepted", h.svc.Snapshot()))
}

// Retry 重新发送最后一条失败的用户消息
// @Summary      重试
// @Description  删除最后一条失败的回复并重新发送对应的用户消息
// @Tags         Copilot
// @Produce      json
// @Param        X-Copilot-Location  header    string  false  "宿主当前页面"
// @Success      202                 {object}  map[string]interface{}
// @Failure      400                 {object}  ErrorResponse  "没有可重试的消息"
// @Failure      409                 {object}  ErrorResponse  "已有对话在进行"
// @Router       /api/v1/copilot/retry [post]
func (h *Handler) Retry(c *gin.Context) {
	if err := h.svc.SubmitRetry(requestContext(c)); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, httputil.NewSuccessResponse("accepted", h.svc.Snapshot()))
}

// Reset 开始新对话
// @Summary      新对话
// @Tags         Copilot
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/copilot/reset [post]
func (h *Handler) Reset(c *gin.Context) {
	h.svc.ResetConversation()
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", h.svc.Snapshot()))
}
