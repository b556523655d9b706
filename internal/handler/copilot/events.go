package copilot

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Events 以 SSE 推送状态快照，连接建立时先推送当前快照
// @Summary      订阅状态快照
// @Description  SSE 流，每个 snapshot 事件携带完整快照；客户端处理不及时时只保留最新一份
// @Tags         Copilot
// @Produce      text/event-stream
// @Success      200  {string}  string  "event: snapshot"
// @Router       /api/v1/copilot/events [get]
func (h *Handler) Events(c *gin.Context) {
	ch, cancel := h.svc.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	log.Debug().Str("request_id", c.GetString("request_id")).Msg("copilot events subscribed")

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
