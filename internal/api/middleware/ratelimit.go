package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"todohub/internal/api/respond"
	"todohub/internal/pkg/metrics"
	"todohub/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit 对请求按客户端 IP 限流，超额返回 429。
//
// 挂在登录/注册这类可被暴力尝试的公开接口上；Redis 不可用时放行并记录告警，
// 限流失效不应该拖垮登录。
func RateLimit(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("ratelimit check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.IncRateLimited()
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			respond.AbortError(c, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		c.Next()
	}
}
