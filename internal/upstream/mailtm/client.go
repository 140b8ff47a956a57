// Package mailtm 是 mail.tm 临时邮件服务的 HTTP 客户端。
package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stealthmail/backend/internal/domain"
)

// DefaultBaseURL mail.tm 公共 API 地址
const DefaultBaseURL = "https://api.mail.tm"

const userAgent = "Stealth-Mail/1.0"

// maxErrorBody 读取错误响应体的上限
const maxErrorBody = 64 << 10

// DefaultRequestsPerSecond 服务商对单个 IP 的请求速率上限
const DefaultRequestsPerSecond = 8

// Observer 接收每次上游调用的结果，用于指标统计
type Observer interface {
	ObserveUpstream(provider, operation, outcome string, elapsed time.Duration)
}

// APIError 服务商返回的非 2xx 响应
type APIError struct {
	Operation string
	Status    int
	Message   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mail.tm %s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("mail.tm %s: status %d: %s", e.Operation, e.Status, e.Message)
}

// StatusOf 返回错误中携带的上游状态码，非 APIError 返回 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client mail.tm API 客户端，并发安全
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	observer   Observer
	limiter    *rate.Limiter
}

// Option 客户端可选项
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithRateLimit 限制发往服务商的请求速率，rps <= 0 表示不限制
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// NewClient 创建客户端
//
// 参数:
//   - baseURL: 服务商地址，留空使用 DefaultBaseURL
//   - timeout: 单次请求超时
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        zap.NewNop(),
		limiter:    rate.NewLimiter(DefaultRequestsPerSecond, DefaultRequestsPerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回服务商地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Domains 列出可用于注册的域名
func (c *Client) Domains(ctx context.Context) ([]domain.MailDomain, error) {
	var items collection[domainDTO]
	if err := c.do(ctx, "domains", http.MethodGet, "/domains", "", nil, &items); err != nil {
		return nil, err
	}

	out := make([]domain.MailDomain, 0, len(items))
	for _, d := range items {
		out = append(out, domain.MailDomain{ID: d.ID, Domain: d.Domain, IsActive: d.IsActive})
	}
	return out, nil
}

// CreateAccount 以地址和密码注册账户
func (c *Client) CreateAccount(ctx context.Context, address, password string) (Account, error) {
	var acc Account
	body := map[string]string{"address": address, "password": password}
	err := c.do(ctx, "create_account", http.MethodPost, "/accounts", "", body, &acc)
	return acc, err
}

// Token 以地址和密码换取 Bearer 令牌
func (c *Client) Token(ctx context.Context, address, password string) (Token, error) {
	var tok Token
	body := map[string]string{"address": address, "password": password}
	err := c.do(ctx, "token", http.MethodPost, "/token", "", body, &tok)
	return tok, err
}

// Messages 列出账户收件箱（第一页）
func (c *Client) Messages(ctx context.Context, token string) ([]domain.Message, error) {
	var items collection[messageDTO]
	if err := c.do(ctx, "messages", http.MethodGet, "/messages", token, nil, &items); err != nil {
		return nil, err
	}

	out := make([]domain.Message, 0, len(items))
	for _, m := range items {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// Message 获取单封邮件详情
func (c *Client) Message(ctx context.Context, token, id string) (domain.Message, error) {
	var dto messageDTO
	if err := c.do(ctx, "message", http.MethodGet, "/messages/"+url.PathEscape(id), token, nil, &dto); err != nil {
		return domain.Message{}, err
	}
	return dto.toDomain(), nil
}

// Me 返回令牌对应的账户
func (c *Client) Me(ctx context.Context, token string) (Account, error) {
	var acc Account
	err := c.do(ctx, "me", http.MethodGet, "/me", token, nil, &acc)
	return acc, err
}

// DeleteAccount 删除账户
func (c *Client) DeleteAccount(ctx context.Context, token, accountID string) error {
	return c.do(ctx, "delete_account", http.MethodDelete, "/accounts/"+url.PathEscape(accountID), token, nil, nil)
}

// do 构造请求、附加认证头、解析 JSON 响应并把非 2xx 转换为 APIError
func (c *Client) do(ctx context.Context, op, method, path, token string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("mail.tm %s: %w", op, err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(op, "error", elapsed)
		c.log.Warn("mail provider request failed",
			zap.String("operation", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("mail.tm %s: %w", op, err)
	}
	defer resp.Body.Close()

	c.observe(op, fmt.Sprintf("%d", resp.StatusCode), elapsed)
	c.log.Debug("mail provider response",
		zap.String("operation", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		apiErr := &APIError{Operation: op, Status: resp.StatusCode, Message: eb.text()}
		c.log.Warn("mail provider returned error",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream("mailtm", op, outcome, elapsed)
	}
}

// AccountIDFromToken 从令牌的 id 声明中读取账户 ID。
//
// 只解析不校验签名，令牌真伪由服务商在后续请求中判定。
func AccountIDFromToken(token string) (string, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", false
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
