// Package gatewayclient 是网关 HTTP 接口的类型化客户端，供终端界面使用。
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
)

// DefaultBaseURL 本地网关 API 根地址
const DefaultBaseURL = "http://localhost:3001/api"

const maxBody = 4 << 20

// APIError 网关返回的错误信封
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s", e.Status, e.Message)
}

// ArticleList 文章列表响应
type ArticleList struct {
	Articles       []domain.Article `json:"articles"`
	Total          int              `json:"total"`
	Page           int              `json:"page"`
	Limit          int              `json:"limit"`
	HasMore        bool             `json:"hasMore"`
	Source         domain.Source    `json:"source"`
	FallbackReason string           `json:"fallbackReason,omitempty"`
}

// Client 网关客户端，并发安全
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
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

// New 创建网关客户端，baseURL 形如 http://host:port/api
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
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
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMailbox 创建临时邮箱
func (c *Client) CreateMailbox(ctx context.Context) (domain.Mailbox, error) {
	var mb domain.Mailbox
	err := c.do(ctx, http.MethodPost, "/mail/create", "", nil, &mb)
	return mb, err
}

// Inbox 获取收件箱
func (c *Client) Inbox(ctx context.Context, email, token string) (domain.Inbox, error) {
	var inbox domain.Inbox
	path := "/mail/inbox?" + url.Values{"email": {email}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, token, nil, &inbox); err != nil {
		return domain.Inbox{}, err
	}
	if inbox.Messages == nil {
		inbox.Messages = []domain.Message{}
	}
	return inbox, nil
}

// Message 获取单封邮件
func (c *Client) Message(ctx context.Context, id, token string) (domain.Message, error) {
	var out struct {
		Message domain.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodGet, "/mail/message/"+url.PathEscape(id), token, nil, &out)
	return out.Message, err
}

// DeleteMailbox 删除邮箱
func (c *Client) DeleteMailbox(ctx context.Context, email, token string) error {
	return c.do(ctx, http.MethodDelete, "/mail/delete", token, map[string]string{"email": email}, nil)
}

// Domains 列出服务商域名
func (c *Client) Domains(ctx context.Context) ([]domain.MailDomain, error) {
	var out struct {
		Domains []domain.MailDomain `json:"domains"`
	}
	err := c.do(ctx, http.MethodGet, "/mail/domains", "", nil, &out)
	return out.Domains, err
}

// Articles 分页列出文章
func (c *Client) Articles(ctx context.Context, filter domain.ArticleFilter) (ArticleList, error) {
	filter = filter.Normalize()
	q := url.Values{
		"limit":         {strconv.Itoa(filter.Limit)},
		"page":          {strconv.Itoa(filter.Page)},
		"publishedOnly": {strconv.FormatBool(filter.PublishedOnly)},
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	var out ArticleList
	err := c.do(ctx, http.MethodGet, "/articles?"+q.Encode(), "", nil, &out)
	return out, err
}

// PopularArticles 列出推荐文章
func (c *Client) PopularArticles(ctx context.Context, limit int) (ArticleList, error) {
	var out ArticleList
	path := "/articles/popular?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// SearchArticles 搜索文章
func (c *Client) SearchArticles(ctx context.Context, query string, limit int) (ArticleList, error) {
	var out ArticleList
	path := "/articles/search?" + url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}}.Encode()
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// Categories 列出文章分类
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	err := c.do(ctx, http.MethodGet, "/articles/categories", "", nil, &out)
	return out.Categories, err
}

// Article 获取单篇文章
func (c *Client) Article(ctx context.Context, id string) (domain.Article, error) {
	var out struct {
		Article domain.Article `json:"article"`
	}
	err := c.do(ctx, http.MethodGet, "/articles/"+url.PathEscape(id), "", nil, &out)
	return out.Article, err
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// do 发送请求并解析 {success, ...} 信封，失败信封转换为业务错误
func (c *Client) do(ctx context.Context, method, path, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("gateway request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return domain.Unavailable("Gateway unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.Unavailable("Failed to read gateway response", err)
	}
	c.log.Debug("gateway response", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.NewError(kindForStatus(resp.StatusCode), msg, &APIError{Status: resp.StatusCode, Message: msg})
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func kindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status == http.StatusTooManyRequests:
		return domain.KindUnavailable
	case status >= 400 && status < 500:
		return domain.KindInvalid
	default:
		return domain.KindUnavailable
	}
}
