// Package notion 是 Notion REST API 的最小客户端，只覆盖文章数据库需要的接口。
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultBaseURL Notion API 地址
const DefaultBaseURL = "https://api.notion.com"

// APIVersion 请求头 Notion-Version 的取值
const APIVersion = "2022-06-28"

// Observer 接收每次上游调用的结果，用于指标统计
type Observer interface {
	ObserveUpstream(provider, operation, outcome string, elapsed time.Duration)
}

// APIError Notion 返回的错误对象
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: status %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound 判断错误是否表示对象不存在
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Code == "object_not_found"
	}
	return false
}

// Client Notion API 客户端
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
	observer   Observer
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

// NewClient 创建客户端
func NewClient(baseURL, token string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query 数据库查询参数
type Query struct {
	Filter      any    `json:"filter,omitempty"`
	Sorts       []Sort `json:"sorts,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
}

// Sort 排序条件
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

// QueryResult 查询结果的一页
type QueryResult struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// QueryDatabase 查询数据库
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q Query) (QueryResult, error) {
	var out QueryResult
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	err := c.do(ctx, "query_database", http.MethodPost, "/v1/databases/"+databaseID+"/query", q, &out)
	return out, err
}

// RetrieveDatabase 获取数据库结构
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (Database, error) {
	var out Database
	err := c.do(ctx, "retrieve_database", http.MethodGet, "/v1/databases/"+databaseID, nil, &out)
	return out, err
}

// RetrievePage 获取单个页面
func (c *Client) RetrievePage(ctx context.Context, pageID string) (Page, error) {
	var out Page
	err := c.do(ctx, "retrieve_page", http.MethodGet, "/v1/pages/"+pageID, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal payload")
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(op, "error", elapsed)
		return errors.Wrapf(err, "notion %s request failed", op)
	}
	defer resp.Body.Close()

	c.observe(op, fmt.Sprintf("%d", resp.StatusCode), elapsed)
	c.log.Debug("content backend response",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return errors.Wrapf(err, "failed to decode notion %s response", op)
	}
	return nil
}

func (c *Client) observe(op, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream("notion", op, outcome, elapsed)
	}
}
