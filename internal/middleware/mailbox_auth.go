package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const mailboxTokenKey = "mailboxToken"

// MailboxToken 提取调用方持有的邮箱令牌并放入上下文
//
// 令牌是否必需由具体处理器决定，这里不做拒绝。
func MailboxToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			c.Set(mailboxTokenKey, token)
		}
		c.Next()
	}
}

// MailboxTokenFrom 读取 MailboxToken 放入的令牌，没有则返回空串
func MailboxTokenFrom(c *gin.Context) string {
	return c.GetString(mailboxTokenKey)
}

// extractToken 从多个来源提取令牌
func extractToken(c *gin.Context) string {
	// 1. Authorization: Bearer <token>
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 2. X-Mailbox-Token
	if token := c.GetHeader("X-Mailbox-Token"); token != "" {
		return strings.TrimSpace(token)
	}

	// 3. ?token=，供无法设置请求头的 websocket 客户端使用
	return strings.TrimSpace(c.Query("token"))
}
