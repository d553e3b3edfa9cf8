package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxRequestIDKey = "requestID"
	requestIDHeader = "X-Request-ID"
)

// RequestID 为每个请求分配一个 uuid，写入上下文与响应头。
// 上游已经带了 X-Request-ID 时沿用，便于跨服务串联日志。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom 返回当前请求的 request id。
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ctxRequestIDKey)
}
