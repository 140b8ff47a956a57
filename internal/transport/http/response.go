package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope 在载荷上加上 success 字段
func envelope(success bool, payload gin.H) gin.H {
	body := gin.H{"success": success}
	for k, v := range payload {
		body[k] = v
	}
	return body
}

// Success 成功响应（200），载荷字段与 success 平级
func Success(c *gin.Context, payload gin.H) {
	c.JSON(http.StatusOK, envelope(true, payload))
}

// Created 创建成功响应（201）
func Created(c *gin.Context, payload gin.H) {
	c.JSON(http.StatusCreated, envelope(true, payload))
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// NotFound 资源不存在错误（404）
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, msg)
}

// InternalError 服务器内部错误（500），details 为空时不输出
func InternalError(c *gin.Context, msg, details string) {
	body := gin.H{"error": msg}
	if details != "" {
		body["details"] = details
	}
	c.JSON(http.StatusInternalServerError, envelope(false, body))
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, envelope(false, gin.H{"error": msg}))
}
