package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
	"stealthmail/backend/internal/upstream/mailtm"
)

// 生成随机用户名使用的词表
var (
	usernameAdjectives = []string{"quick", "lazy", "jumpy", "silent", "bright", "dark", "fast", "slow"}
	usernameNouns      = []string{"fox", "cat", "dog", "bird", "fish", "bear", "wolf", "lion"}
)

const (
	passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"
	passwordLength   = 12
)

// MailProvider 上游临时邮件服务商
type MailProvider interface {
	Domains(ctx context.Context) ([]domain.MailDomain, error)
	CreateAccount(ctx context.Context, address, password string) (mailtm.Account, error)
	Token(ctx context.Context, address, password string) (mailtm.Token, error)
	Messages(ctx context.Context, token string) ([]domain.Message, error)
	Message(ctx context.Context, token, id string) (domain.Message, error)
	Me(ctx context.Context, token string) (mailtm.Account, error)
	DeleteAccount(ctx context.Context, token, accountID string) error
}

// MailboxRecorder 邮箱生命周期指标
type MailboxRecorder interface {
	RecordMailboxCreated()
	RecordMailboxDeleted()
}

// MailService 封装临时邮箱相关业务操作。
//
// 服务本身无状态，邮箱身份完全由调用方持有的令牌表示。
type MailService struct {
	provider MailProvider
	lifetime time.Duration
	log      *zap.Logger
	metrics  MailboxRecorder
	now      func() time.Time
}

// NewMailService 创建邮箱业务服务。
func NewMailService(provider MailProvider, lifetime time.Duration, log *zap.Logger, metrics MailboxRecorder) *MailService {
	if log == nil {
		log = zap.NewNop()
	}
	if lifetime <= 0 {
		lifetime = domain.DefaultMailboxLifetime
	}
	return &MailService{
		provider: provider,
		lifetime: lifetime,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Lifetime 返回邮箱生存期
func (s *MailService) Lifetime() time.Duration {
	return s.lifetime
}

// CreateAccount 在服务商处注册新邮箱并换取令牌
//
// 域名取第一个激活的域名，没有激活域名时取列表第一个；
// 本地部分为 形容词+名词+0~999，密码为 12 位随机字符。
func (s *MailService) CreateAccount(ctx context.Context) (domain.Mailbox, error) {
	domains, err := s.provider.Domains(ctx)
	if err != nil {
		return domain.Mailbox{}, domain.Unavailable("Failed to create email account", err)
	}

	selected, ok := PickDomain(domains)
	if !ok {
		return domain.Mailbox{}, domain.Unavailable("Failed to create email account", fmt.Errorf("no available domains"))
	}

	address := RandomLocalPart() + "@" + selected.Domain
	password, err := gonanoid.Generate(passwordAlphabet, passwordLength)
	if err != nil {
		return domain.Mailbox{}, domain.Unavailable("Failed to create email account", err)
	}

	account, err := s.provider.CreateAccount(ctx, address, password)
	if err != nil {
		s.log.Warn("failed to create provider account", zap.String("address", address), zap.Error(err))
		return domain.Mailbox{}, domain.Unavailable("Failed to create email account", err)
	}

	token, err := s.provider.Token(ctx, address, password)
	if err != nil {
		s.log.Warn("failed to obtain provider token", zap.String("address", address), zap.Error(err))
		return domain.Mailbox{}, domain.Unavailable("Failed to create email account", err)
	}

	accountID := account.ID
	if accountID == "" {
		accountID = token.ID
	}

	mb := domain.NewMailbox(address, accountID, token.Token, s.now(), s.lifetime)
	if s.metrics != nil {
		s.metrics.RecordMailboxCreated()
	}
	s.log.Info("mailbox created",
		zap.String("address", mb.Address),
		zap.String("domain", selected.Domain),
		zap.Time("expires_at", mb.ExpiresAt),
	)
	return mb, nil
}

// ListMessages 返回收件箱，令牌为空时直接返回空收件箱而不访问服务商
func (s *MailService) ListMessages(ctx context.Context, email, token string) (domain.Inbox, error) {
	if strings.TrimSpace(token) == "" {
		return domain.EmptyInbox(email), nil
	}

	messages, err := s.provider.Messages(ctx, token)
	if err != nil {
		return domain.Inbox{}, translateProviderError(err, "Failed to fetch messages")
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return domain.Inbox{Email: email, Messages: messages, Total: len(messages)}, nil
}

// GetMessage 返回单封邮件详情
func (s *MailService) GetMessage(ctx context.Context, id, token string) (domain.Message, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Message{}, domain.ErrAuthRequired
	}
	if strings.TrimSpace(id) == "" {
		return domain.Message{}, domain.Invalid("Message ID is required")
	}

	msg, err := s.provider.Message(ctx, token, id)
	if err != nil {
		return domain.Message{}, translateProviderError(err, "Message not found")
	}
	return msg, nil
}

// DeleteAccount 删除邮箱，令牌为空时返回 ErrAuthRequired 且不访问服务商
//
// 账户 ID 优先从令牌声明中读取，读取不到再调用 /me。
func (s *MailService) DeleteAccount(ctx context.Context, email, token string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrAuthRequired
	}

	accountID, ok := mailtm.AccountIDFromToken(token)
	if !ok {
		me, err := s.provider.Me(ctx, token)
		if err != nil {
			return translateProviderError(err, "Failed to delete email account")
		}
		accountID = me.ID
	}

	if err := s.provider.DeleteAccount(ctx, token, accountID); err != nil {
		return translateProviderError(err, "Failed to delete email account")
	}

	if s.metrics != nil {
		s.metrics.RecordMailboxDeleted()
	}
	s.log.Info("mailbox deleted", zap.String("address", email))
	return nil
}

// Domains 返回服务商域名列表
func (s *MailService) Domains(ctx context.Context) ([]domain.MailDomain, error) {
	domains, err := s.provider.Domains(ctx)
	if err != nil {
		return nil, domain.Unavailable("Failed to fetch domains", err)
	}
	if domains == nil {
		domains = []domain.MailDomain{}
	}
	return domains, nil
}

// PickDomain 选择第一个激活域名，否则选择第一个
func PickDomain(domains []domain.MailDomain) (domain.MailDomain, bool) {
	if len(domains) == 0 {
		return domain.MailDomain{}, false
	}
	for _, d := range domains {
		if d.IsActive {
			return d, true
		}
	}
	return domains[0], true
}

// RandomLocalPart 生成 形容词+名词+0~999 形式的本地部分
func RandomLocalPart() string {
	adj := usernameAdjectives[rand.IntN(len(usernameAdjectives))]
	noun := usernameNouns[rand.IntN(len(usernameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, rand.IntN(1000))
}

// translateProviderError 将服务商错误映射为业务错误分类
//
// 404 -> NotFound；其余 4xx -> Invalid 并带上服务商描述；网络错误与 5xx -> Unavailable。
func translateProviderError(err error, msg string) error {
	status := mailtm.StatusOf(err)
	switch {
	case status == http.StatusNotFound:
		return domain.NewError(domain.KindNotFound, msg, err)
	case status >= 400 && status < 500:
		detail := msg
		if apiMsg := providerMessage(err); apiMsg != "" {
			detail = apiMsg
		}
		return domain.NewError(domain.KindInvalid, detail, err)
	default:
		return domain.Unavailable(msg, err)
	}
}

func providerMessage(err error) string {
	var apiErr *mailtm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
