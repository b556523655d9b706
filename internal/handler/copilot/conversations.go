package copilot

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"copilot/internal/model"
	httputil "copilot/internal/pkg/http"
)

// ConversationPathRequest 对话路径参数
type ConversationPathRequest struct {
	ConversationID string `uri:"conversation_id" binding:"required"` // 对话ID（必填）
}

// ConversationInfo 对话摘要 DTO
type ConversationInfo struct {
	ID           string `json:"id"`            // 对话ID
	Title        string `json:"title"`         // 标题
	MessageCount int    `json:"message_count"` // 消息数
	CreatedAt    string `json:"created_at"`    // 创建时间
	UpdatedAt    string `json:"updated_at"`    // 更新时间
}

// toConversationInfo 将 Conversation 转换为 ConversationInfo
func toConversationInfo(conv model.Conversation) ConversationInfo {
	return ConversationInfo{
		ID:           conv.ID,
		Title:        conv.Title,
		MessageCount: len(conv.Messages),
		CreatedAt:    conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    conv.UpdatedAt.Format(time.RFC3339),
	}
}

// ListConversations 已保存的对话列表，按更新时间倒序
// @Summary      对话列表
// @Tags         Copilot
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "data.conversations 为 ConversationInfo 列表"
// @Router       /api/v1/copilot/conversations [get]
func (h *Handler) ListConversations(c *gin.Context) {
	list := h.svc.Conversations(c.Request.Context())
	infos := make([]ConversationInfo, len(list))
	for i, conv := range list {
		infos[i] = toConversationInfo(conv)
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", gin.H{
		"conversations": infos,
	}))
}

// OpenConversation 切换到已保存的对话
// @Summary      打开对话
// @Tags         Copilot
// @Produce      json
// @Param        conversation_id  path      string  true  "对话ID"
// @Success      200              {object}  map[string]interface{}
// @Failure      404              {object}  ErrorResponse  "对话不存在"
// @Failure      409              {object}  ErrorResponse  "已有对话在进行"
// @Router       /api/v1/copilot/conversations/{conversation_id}/open [post]
func (h *Handler) OpenConversation(c *gin.Context) {
	var req ConversationPathRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid conversation_id",
			Detail:  err.Error(),
		})
		return
	}

	if err := h.svc.OpenConversation(c.Request.Context(), req.ConversationID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", h.svc.Snapshot()))
}

// RemoveConversation 删除已保存的对话
// @Summary      删除对话
// @Tags         Copilot
// @Produce      json
// @Param        conversation_id  path      string  true  "对话ID"
// @Success      200              {object}  map[string]interface{}
// @Router       /api/v1/copilot/conversations/{conversation_id} [delete]
func (h *Handler) RemoveConversation(c *gin.Context) {
	var req ConversationPathRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid conversation_id",
			Detail:  err.Error(),
		})
		return
	}

	h.svc.RemoveConversation(c.Request.Context(), req.ConversationID)
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", nil))
}
