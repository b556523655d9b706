package middleware

import (
	"github.com/gin-gonic/gin"

	"copilot/internal/pkg/id"
)

// RequestIDHeader 请求ID请求头
const RequestIDHeader = "X-Request-ID"

// RequestID 为每个请求分配 request_id，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = id.New()
		}
		c.Set("request_id", rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}
