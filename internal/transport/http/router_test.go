package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthmail/backend/internal/config"
	"stealthmail/backend/internal/domain"
	"stealthmail/backend/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMail struct {
	created   domain.Mailbox
	createErr error
	inbox     domain.Inbox
	inboxErr  error
	message   domain.Message
	msgErr    error
	deleteErr error
	domains   []domain.MailDomain

	lastToken string
	lastEmail string
}

func (f *fakeMail) CreateAccount(context.Context) (domain.Mailbox, error) {
	return f.created, f.createErr
}

func (f *fakeMail) ListMessages(_ context.Context, email, token string) (domain.Inbox, error) {
	f.lastEmail, f.lastToken = email, token
	return f.inbox, f.inboxErr
}

func (f *fakeMail) GetMessage(_ context.Context, _ string, token string) (domain.Message, error) {
	f.lastToken = token
	return f.message, f.msgErr
}

func (f *fakeMail) DeleteAccount(_ context.Context, email, token string) error {
	f.lastEmail, f.lastToken = email, token
	return f.deleteErr
}

func (f *fakeMail) Domains(context.Context) ([]domain.MailDomain, error) {
	return f.domains, nil
}

type fakeArticles struct {
	list   domain.Result[domain.ArticlePage]
	byID   domain.Result[domain.Article]
	filter domain.ArticleFilter
}

func (f *fakeArticles) ListArticles(_ context.Context, filter domain.ArticleFilter) domain.Result[domain.ArticlePage] {
	f.filter = filter
	return f.list
}

func (f *fakeArticles) ByCategory(_ context.Context, category string, _ int) domain.Result[domain.ArticlePage] {
	return domain.Ok(domain.ArticlePage{Articles: []domain.Article{{ID: "1", Category: category}}, Total: 1})
}

func (f *fakeArticles) Popular(context.Context, int) domain.Result[[]domain.Article] {
	return domain.Ok([]domain.Article{{ID: "1", Popular: true}})
}

func (f *fakeArticles) Search(_ context.Context, query string, _ int) domain.Result[[]domain.Article] {
	return domain.Ok([]domain.Article{{ID: "2", Title: query}})
}

func (f *fakeArticles) Categories(context.Context) domain.Result[[]string] {
	return domain.Fallback([]string{"privacy"}, "not_configured")
}

func (f *fakeArticles) ByID(context.Context, string) domain.Result[domain.Article] {
	return f.byID
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App:  config.AppConfig{Environment: env},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{
			Window:       time.Minute,
			Max:          100,
			CreateWindow: time.Minute,
			CreateMax:    1,
		},
	}
}

func newTestRouter(env string, mail *fakeMail, articles *fakeArticles) *gin.Engine {
	return NewRouter(RouterDependencies{
		Config:   testConfig(env),
		Mail:     mail,
		Articles: articles,
		Limiter:  ratelimit.NewMemoryLimiter(0),
	})
}

func do(r http.Handler, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMailRoutes(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)

	t.Run("创建邮箱返回 201 并受创建限流约束", func(t *testing.T) {
		mail := &fakeMail{created: domain.Mailbox{Address: "abc@mail.tm", ExternalID: "acc-1", Token: "tok", ExpiresAt: expires}}
		r := newTestRouter("development", mail, &fakeArticles{})

		w := do(r, http.MethodPost, "/api/mail/create", "", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "abc@mail.tm", body["email"])
		assert.Equal(t, "acc-1", body["id"])
		assert.Equal(t, "tok", body["token"])
		assert.Equal(t, "2026-01-01T12:10:00Z", body["expiresAt"])
		assert.Equal(t, MsgMailboxCreated, body["message"])
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

		w = do(r, http.MethodPost, "/api/mail/create", "", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "Too many email creation attempts, please try again later.", decode(t, w)["error"])
	})

	t.Run("伪造 X-Forwarded-For 不能绕过限流", func(t *testing.T) {
		mail := &fakeMail{created: domain.Mailbox{Address: "abc@mail.tm"}}
		r := newTestRouter("development", mail, &fakeArticles{})

		var codes []int
		for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4"} {
			w := do(r, http.MethodPost, "/api/mail/create", "", map[string]string{"X-Forwarded-For": ip})
			codes = append(codes, w.Code)
		}
		assert.Equal(t, []int{http.StatusCreated, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	})

	t.Run("可信代理转发的客户端地址分别计数", func(t *testing.T) {
		cfg := testConfig("development")
		// httptest 请求的对端地址
		cfg.Server.TrustedProxies = []string{"192.0.2.1"}
		r := NewRouter(RouterDependencies{
			Config:   cfg,
			Mail:     &fakeMail{created: domain.Mailbox{Address: "abc@mail.tm"}},
			Articles: &fakeArticles{},
			Limiter:  ratelimit.NewMemoryLimiter(0),
		})

		for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
			w := do(r, http.MethodPost, "/api/mail/create", "", map[string]string{"X-Forwarded-For": ip})
			assert.Equal(t, http.StatusCreated, w.Code)
		}
		w := do(r, http.MethodPost, "/api/mail/create", "", map[string]string{"X-Forwarded-For": "203.0.113.1"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("收件箱缺少邮箱地址返回 400", func(t *testing.T) {
		r := newTestRouter("development", &fakeMail{}, &fakeArticles{})
		w := do(r, http.MethodGet, "/api/mail/inbox", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Email address is required"}`, w.Body.String())
	})

	t.Run("收件箱透传 Bearer 令牌", func(t *testing.T) {
		mail := &fakeMail{inbox: domain.Inbox{Messages: []domain.Message{{ID: "m1", Subject: "hi"}}, Total: 1}}
		r := newTestRouter("development", mail, &fakeArticles{})

		w := do(r, http.MethodGet, "/api/mail/inbox?email=abc@mail.tm", "", map[string]string{"Authorization": "Bearer tok"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tok", mail.lastToken)
		body := decode(t, w)
		assert.Equal(t, float64(1), body["total"])
		assert.Equal(t, "abc@mail.tm", body["email"])
		assert.Len(t, body["messages"], 1)
	})

	t.Run("邮件不存在返回 404", func(t *testing.T) {
		mail := &fakeMail{msgErr: domain.NotFound("Message not found")}
		r := newTestRouter("development", mail, &fakeArticles{})

		w := do(r, http.MethodGet, "/api/mail/message/m9", "", map[string]string{"X-Mailbox-Token": "tok"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Message not found"}`, w.Body.String())
	})

	t.Run("缺少令牌返回 400", func(t *testing.T) {
		mail := &fakeMail{msgErr: domain.ErrAuthRequired}
		r := newTestRouter("development", mail, &fakeArticles{})

		w := do(r, http.MethodGet, "/api/mail/message/m9", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Authentication token required", decode(t, w)["error"])
	})

	t.Run("删除邮箱", func(t *testing.T) {
		mail := &fakeMail{}
		r := newTestRouter("development", mail, &fakeArticles{})

		w := do(r, http.MethodDelete, "/api/mail/delete", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgEmailRequired, decode(t, w)["error"])

		w = do(r, http.MethodDelete, "/api/mail/delete", `{"email":`, map[string]string{"Authorization": "Bearer tok"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgInvalidRequest, decode(t, w)["error"])
		assert.Empty(t, mail.lastToken)

		w = do(r, http.MethodDelete, "/api/mail/delete", `{"email":"abc@mail.tm"}`, map[string]string{"Authorization": "Bearer tok"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"message":"Email deleted successfully"}`, w.Body.String())
		assert.Equal(t, "abc@mail.tm", mail.lastEmail)
		assert.Equal(t, "tok", mail.lastToken)
	})

	t.Run("上游故障在开发环境附带详情", func(t *testing.T) {
		mail := &fakeMail{createErr: domain.Unavailable("Failed to create email account", errors.New("dial tcp: refused"))}

		w := do(newTestRouter("development", mail, &fakeArticles{}), http.MethodPost, "/api/mail/create", "", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Failed to create email account", body["error"])
		assert.Contains(t, body["details"], "dial tcp")

		w = do(newTestRouter("production", mail, &fakeArticles{}), http.MethodPost, "/api/mail/create", "", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, decode(t, w), "details")
	})

	t.Run("非业务错误不外露原始信息", func(t *testing.T) {
		mail := &fakeMail{inboxErr: errors.New("secret internals")}
		w := do(newTestRouter("production", mail, &fakeArticles{}), http.MethodGet, "/api/mail/inbox?email=a@b.c", "", nil)
		assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, w.Body.String())
	})

	t.Run("域名列表", func(t *testing.T) {
		mail := &fakeMail{domains: []domain.MailDomain{{ID: "d1", Domain: "mail.tm", IsActive: true}}}
		w := do(newTestRouter("development", mail, &fakeArticles{}), http.MethodGet, "/api/mail/domains", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["domains"], 1)
	})
}

func TestArticleRoutes(t *testing.T) {
	t.Run("列表标注兜底来源并回显分页", func(t *testing.T) {
		articles := &fakeArticles{list: domain.Fallback(domain.ArticlePage{
			Articles: []domain.Article{{ID: "5"}, {ID: "6"}},
			Total:    6,
		}, "not_configured")}
		r := newTestRouter("development", &fakeMail{}, articles)

		w := do(r, http.MethodGet, "/api/articles?limit=4&page=2&category=privacy", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "fallback", body["source"])
		assert.Equal(t, "not_configured", body["fallbackReason"])
		assert.Equal(t, float64(2), body["page"])
		assert.Equal(t, float64(4), body["limit"])
		assert.Equal(t, float64(6), body["total"])
		assert.Equal(t, false, body["hasMore"])
		assert.Equal(t, "privacy", articles.filter.Category)
		assert.True(t, articles.filter.PublishedOnly)
	})

	t.Run("非法分页参数使用默认值", func(t *testing.T) {
		articles := &fakeArticles{list: domain.Ok(domain.ArticlePage{})}
		r := newTestRouter("development", &fakeMail{}, articles)

		w := do(r, http.MethodGet, "/api/articles?limit=abc&page=-1&publishedOnly=false", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 10, articles.filter.Limit)
		assert.Equal(t, 1, articles.filter.Page)
		assert.False(t, articles.filter.PublishedOnly)
		assert.NotContains(t, decode(t, w), "fallbackReason")
	})

	t.Run("超大分页参数被截断", func(t *testing.T) {
		articles := &fakeArticles{list: domain.Ok(domain.ArticlePage{Articles: []domain.Article{}})}
		r := newTestRouter("development", &fakeMail{}, articles)

		w := do(r, http.MethodGet, "/api/articles?limit=1125899906842624&page=4611686018427387904", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.MaxLimit, articles.filter.Limit)
		assert.Equal(t, domain.MaxPage, articles.filter.Page)
		body := decode(t, w)
		assert.Equal(t, float64(domain.MaxLimit), body["limit"])
		assert.Equal(t, float64(domain.MaxPage), body["page"])
	})

	t.Run("搜索缺少关键字返回 400", func(t *testing.T) {
		w := do(newTestRouter("development", &fakeMail{}, &fakeArticles{}), http.MethodGet, "/api/articles/search?query=%20", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Search query is required", decode(t, w)["error"])
	})

	t.Run("静态路由优先于文章 ID", func(t *testing.T) {
		r := newTestRouter("development", &fakeMail{}, &fakeArticles{})

		body := decode(t, do(r, http.MethodGet, "/api/articles/search?query=vpn", "", nil))
		assert.Equal(t, "vpn", body["query"])
		assert.Equal(t, float64(1), body["total"])

		body = decode(t, do(r, http.MethodGet, "/api/articles/categories", "", nil))
		assert.Equal(t, []any{"privacy"}, body["categories"])

		body = decode(t, do(r, http.MethodGet, "/api/articles/category/security", "", nil))
		assert.Equal(t, "security", body["category"])
	})

	t.Run("文章不存在返回 404", func(t *testing.T) {
		articles := &fakeArticles{byID: domain.Failed[domain.Article](domain.NotFound("Article not found"))}
		w := do(newTestRouter("development", &fakeMail{}, articles), http.MethodGet, "/api/articles/999", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Article not found", decode(t, w)["error"])
	})
}

func TestSystemRoutes(t *testing.T) {
	r := newTestRouter("development", &fakeMail{}, &fakeArticles{})

	t.Run("健康检查", func(t *testing.T) {
		w := do(r, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, "development", body["environment"])

		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/live", "", nil).Code)
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/ready", "", nil).Code)
	})

	t.Run("服务横幅", func(t *testing.T) {
		body := decode(t, do(r, http.MethodGet, "/", "", nil))
		assert.Equal(t, "Stealth Mail API Server", body["message"])
		assert.Equal(t, "/api/docs", body["documentation"])
	})

	t.Run("接口文档列出已注册路由", func(t *testing.T) {
		body := decode(t, do(r, http.MethodGet, "/api/docs", "", nil))
		assert.Equal(t, "Stealth Mail API Documentation", body["title"])
		endpoints := body["endpoints"].(map[string]any)
		mail := endpoints["mail"].(map[string]any)
		assert.Equal(t, "Create a temporary email address", mail["POST /api/mail/create"])
		assert.NotContains(t, mail, "GET /api/mail/stream")
		assert.Contains(t, endpoints["articles"], "GET /api/articles/:id")
	})

	t.Run("未匹配路由返回 404", func(t *testing.T) {
		w := do(r, http.MethodGet, "/nope?x=1", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Not found - /nope?x=1"}`, w.Body.String())
	})

	t.Run("指标端点", func(t *testing.T) {
		do(r, http.MethodGet, "/health", "", nil)
		w := do(r, http.MethodGet, "/metrics", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "stealthmail_http_requests_total")
	})

	t.Run("安全响应头与请求 ID", func(t *testing.T) {
		w := do(r, http.MethodGet, "/health", "", nil)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}
