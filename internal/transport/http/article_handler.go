package httptransport

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
)

// ArticleService 文章业务
type ArticleService interface {
	ListArticles(ctx context.Context, filter domain.ArticleFilter) domain.Result[domain.ArticlePage]
	ByCategory(ctx context.Context, category string, limit int) domain.Result[domain.ArticlePage]
	Popular(ctx context.Context, limit int) domain.Result[[]domain.Article]
	Search(ctx context.Context, query string, limit int) domain.Result[[]domain.Article]
	Categories(ctx context.Context) domain.Result[[]string]
	ByID(ctx context.Context, id string) domain.Result[domain.Article]
}

// ArticleHandler 文章接口
type ArticleHandler struct {
	articles ArticleService
	errResp  errorResponder
}

// NewArticleHandler 创建文章处理器
func NewArticleHandler(articles ArticleService, log *zap.Logger, production bool) *ArticleHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ArticleHandler{
		articles: articles,
		errResp:  errorResponder{log: log, production: production},
	}
}

// List 分页列出文章
func (h *ArticleHandler) List(c *gin.Context) {
	filter := domain.ArticleFilter{
		Limit:         queryInt(c, "limit", 10),
		Category:      strings.TrimSpace(c.Query("category")),
		PublishedOnly: c.DefaultQuery("publishedOnly", "true") == "true",
		Page:          queryInt(c, "page", 1),
	}.Normalize()

	r := h.articles.ListArticles(c.Request.Context(), filter)
	if r.IsErr() {
		h.errResp.respond(c, r.Err)
		return
	}

	Success(c, withSource(gin.H{
		"articles": r.Data.Articles,
		"total":    r.Data.Total,
		"page":     filter.Page,
		"limit":    filter.Limit,
		"hasMore":  r.Data.HasMore,
	}, r.Source, r.Reason))
}

// Popular 列出推荐文章
func (h *ArticleHandler) Popular(c *gin.Context) {
	r := h.articles.Popular(c.Request.Context(), queryInt(c, "limit", 6))
	if r.IsErr() {
		h.errResp.respond(c, r.Err)
		return
	}

	Success(c, withSource(gin.H{"articles": r.Data}, r.Source, r.Reason))
}

// Search 搜索文章
func (h *ArticleHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		BadRequest(c, MsgSearchQueryRequired)
		return
	}

	r := h.articles.Search(c.Request.Context(), query, queryInt(c, "limit", 10))
	if r.IsErr() {
		h.errResp.respond(c, r.Err)
		return
	}

	Success(c, withSource(gin.H{
		"articles": r.Data,
		"query":    query,
		"total":    len(r.Data),
	}, r.Source, r.Reason))
}

// Categories 列出分类
func (h *ArticleHandler) Categories(c *gin.Context) {
	r := h.articles.Categories(c.Request.Context())
	if r.IsErr() {
		h.errResp.respond(c, r.Err)
		return
	}

	Success(c, withSource(gin.H{"categories": r.Data}, r.Source, r.Reason))
}

// ByCategory 列出某分类下的文章
func (h *ArticleHandler) ByCategory(c *gin.Context) {
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		BadRequest(c, MsgCategoryRequired)
		return
	}

	r := h.articles.ByCategory(c.Request.Context(), category, queryInt(c, "limit", 10))
	if r.IsErr() {
		h.errResp.respond(c, r.Err)
		return
	}

	Success(c, withSource(gin.H{
		"articles": r.Data.Articles,
		"category": category,
		"total":    r.Data.Total,
	}, r.Source, r.Reason))
}

// ByID 获取单篇文章
func (h *ArticleHandler) ByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		BadRequest(c, MsgArticleIDRequired)
		return
	}

	r := h.articles.ByID(c.Request.Context(), id)
	if r.IsErr() {
		h.errResp.respond(c, r.Err)
		return
	}

	Success(c, withSource(gin.H{"article": r.Data}, r.Source, r.Reason))
}

// withSource 标注数据来源，兜底数据附带原因
func withSource(payload gin.H, source domain.Source, reason string) gin.H {
	payload["source"] = source
	if source == domain.SourceFallback {
		payload["fallbackReason"] = reason
	}
	return payload
}

// queryInt 读取正整数查询参数，缺失或非法时返回默认值
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
