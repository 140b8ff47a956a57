package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
)

// 通用错误消息
const (
	MsgEmailRequired       = "Email address is required"
	MsgMessageIDRequired   = "Message ID is required"
	MsgSearchQueryRequired = "Search query is required"
	MsgCategoryRequired    = "Category is required"
	MsgArticleIDRequired   = "Article ID is required"
	MsgInvalidRequest      = "Invalid request body"
	MsgInternalError       = "Internal server error"
)

// 成功提示
const (
	MsgMailboxCreated = "Temporary email created successfully"
	MsgMailboxDeleted = "Email deleted successfully"
)

// StatusOf 返回错误分类对应的 HTTP 状态码
func StatusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalid, domain.KindAuthRequired:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorResponder 把业务错误写成统一错误响应
type errorResponder struct {
	log        *zap.Logger
	production bool
}

// respond 写出错误响应。500 只在非生产环境附带底层错误。
func (r errorResponder) respond(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := StatusOf(kind)
	msg := domain.MessageOf(err)

	if status != http.StatusInternalServerError {
		Error(c, status, msg)
		return
	}

	_ = c.Error(err)
	r.log.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("kind", kind.String()),
		zap.Error(err),
	)

	var de *domain.Error
	if !errors.As(err, &de) || de.Msg == "" {
		msg = MsgInternalError
	}
	details := ""
	if !r.production {
		details = err.Error()
	}
	InternalError(c, msg, details)
}
