package httptransport

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
	"stealthmail/backend/internal/middleware"
	"stealthmail/backend/internal/websocket"
)

// MailService 邮箱业务
type MailService interface {
	CreateAccount(ctx context.Context) (domain.Mailbox, error)
	ListMessages(ctx context.Context, email, token string) (domain.Inbox, error)
	GetMessage(ctx context.Context, id, token string) (domain.Message, error)
	DeleteAccount(ctx context.Context, email, token string) error
	Domains(ctx context.Context) ([]domain.MailDomain, error)
}

// MailHandler 临时邮箱相关接口
type MailHandler struct {
	mail    MailService
	stream  *websocket.Streamer
	log     *zap.Logger
	errResp errorResponder
}

// NewMailHandler 创建邮箱处理器，stream 为 nil 时不提供推送接口
func NewMailHandler(mail MailService, stream *websocket.Streamer, log *zap.Logger, production bool) *MailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailHandler{
		mail:    mail,
		stream:  stream,
		log:     log,
		errResp: errorResponder{log: log, production: production},
	}
}

type deleteMailboxRequest struct {
	Email string `json:"email"`
}

// Create 创建临时邮箱
func (h *MailHandler) Create(c *gin.Context) {
	mb, err := h.mail.CreateAccount(c.Request.Context())
	if err != nil {
		h.errResp.respond(c, err)
		return
	}

	Created(c, gin.H{
		"email":     mb.Address,
		"id":        mb.ExternalID,
		"token":     mb.Token,
		"expiresAt": mb.ExpiresAt,
		"message":   MsgMailboxCreated,
	})
}

// Inbox 返回收件箱，没有令牌时返回空列表
func (h *MailHandler) Inbox(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		BadRequest(c, MsgEmailRequired)
		return
	}

	inbox, err := h.mail.ListMessages(c.Request.Context(), email, middleware.MailboxTokenFrom(c))
	if err != nil {
		h.errResp.respond(c, err)
		return
	}

	Success(c, gin.H{
		"messages": inbox.Messages,
		"total":    inbox.Total,
		"email":    email,
	})
}

// Message 返回单封邮件
func (h *MailHandler) Message(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		BadRequest(c, MsgMessageIDRequired)
		return
	}

	msg, err := h.mail.GetMessage(c.Request.Context(), id, middleware.MailboxTokenFrom(c))
	if err != nil {
		h.errResp.respond(c, err)
		return
	}

	Success(c, gin.H{"message": msg})
}

// Delete 删除邮箱
func (h *MailHandler) Delete(c *gin.Context) {
	var req deleteMailboxRequest
	// 空请求体按缺少邮箱地址处理
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		BadRequest(c, MsgEmailRequired)
		return
	}

	if err := h.mail.DeleteAccount(c.Request.Context(), email, middleware.MailboxTokenFrom(c)); err != nil {
		h.errResp.respond(c, err)
		return
	}

	Success(c, gin.H{"message": MsgMailboxDeleted})
}

// Domains 返回服务商域名列表
func (h *MailHandler) Domains(c *gin.Context) {
	domains, err := h.mail.Domains(c.Request.Context())
	if err != nil {
		h.errResp.respond(c, err)
		return
	}

	Success(c, gin.H{"domains": domains})
}

// Stream 通过 WebSocket 推送收件箱快照
func (h *MailHandler) Stream(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		BadRequest(c, MsgEmailRequired)
		return
	}

	h.stream.Serve(c.Writer, c.Request, email, middleware.MailboxTokenFrom(c))
}
