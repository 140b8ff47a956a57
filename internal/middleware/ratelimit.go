package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stealthmail/backend/internal/ratelimit"
)

// 限流提示
const (
	GlobalRateLimitMessage = "Too many requests from this IP, please try again later."
	CreateRateLimitMessage = "Too many email creation attempts, please try again later."
)

// RateLimitRecorder 限流指标
type RateLimitRecorder interface {
	RecordRateLimitBlock(limiter string)
}

// RateLimit 按客户端 IP 限流
//
// 参数:
//   - limiter: 限流后端
//   - rule: 窗口与上限，rule.Name 同时作为指标标签
//   - message: 被拒绝时返回的错误信息
//
// 后端出错时放行请求并记录日志。
func RateLimit(limiter ratelimit.Limiter, rule ratelimit.Rule, message string, log *zap.Logger, metrics RateLimitRecorder) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), rule, c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable",
				zap.String("limiter", rule.Name),
				zap.String("request_id", RequestIDFrom(c)),
				zap.Error(err),
			)
			c.Next()
			return
		}

		resetSeconds := strconv.FormatInt(int64(math.Ceil(decision.ResetAfter.Seconds())), 10)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", resetSeconds)

		if !decision.Allowed {
			if metrics != nil {
				metrics.RecordRateLimitBlock(rule.Name)
			}
			log.Warn("rate limit exceeded",
				zap.String("limiter", rule.Name),
				zap.String("ip", c.ClientIP()),
			)
			c.Header("Retry-After", resetSeconds)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   message,
			})
			return
		}

		c.Next()
	}
}
