package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"stealthmail/backend/internal/cache"
	"stealthmail/backend/internal/domain"
	"stealthmail/backend/internal/upstream/notion"
)

// 兜底原因
const (
	ReasonNotConfigured = "content backend not configured"
	reasonBackendError  = "content backend error"
)

// ContentBackend 文章数据来源
type ContentBackend interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) (notion.QueryResult, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (notion.Database, error)
	RetrievePage(ctx context.Context, pageID string) (notion.Page, error)
}

// FallbackRecorder 兜底数据指标
type FallbackRecorder interface {
	RecordContentFallback(operation, reason string)
}

// ArticleService 文章业务服务
//
// 所有读取操作返回 domain.Result：实时数据为 Ok，未配置或后端出错时为 Fallback，
// 只有参数错误与文章不存在才是 Err。实时结果按 TTL 缓存在本地。
type ArticleService struct {
	backend    ContentBackend
	databaseID string
	cache      *cache.LocalCache[any]
	cacheTTL   time.Duration
	log        *zap.Logger
	metrics    FallbackRecorder
	now        func() time.Time
}

// NewArticleService 创建文章服务。backend 为 nil 或 databaseID 为空时只提供兜底数据。
func NewArticleService(backend ContentBackend, databaseID string, store *cache.LocalCache[any], cacheTTL time.Duration, log *zap.Logger, metrics FallbackRecorder) *ArticleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ArticleService{
		backend:    backend,
		databaseID: strings.TrimSpace(databaseID),
		cache:      store,
		cacheTTL:   cacheTTL,
		log:        log,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Configured 判断是否连接了实时内容后台
func (s *ArticleService) Configured() bool {
	return s.backend != nil && s.databaseID != ""
}

// ListArticles 按条件分页列出文章
func (s *ArticleService) ListArticles(ctx context.Context, filter domain.ArticleFilter) domain.Result[domain.ArticlePage] {
	filter = filter.Normalize()
	if !s.Configured() {
		return withFallback(s, "list", domain.Fallback(fallbackPage(filter), ReasonNotConfigured))
	}

	key := fmt.Sprintf("list:%d:%s:%t:%d", filter.Limit, strings.ToLower(filter.Category), filter.PublishedOnly, filter.Page)
	if page, ok := cached[domain.ArticlePage](s, key); ok {
		return domain.Ok(page)
	}

	page, err := s.queryPage(ctx, filter)
	if err != nil {
		s.log.Warn("failed to fetch articles, using fallback", zap.Error(err))
		return withFallback(s, "list", domain.Fallback(fallbackPage(filter), backendReason(err)))
	}
	s.store(key, page)
	return domain.Ok(page)
}

// ByCategory 列出某分类下已发布的文章，分类不存在时返回空列表
func (s *ArticleService) ByCategory(ctx context.Context, category string, limit int) domain.Result[domain.ArticlePage] {
	return s.ListArticles(ctx, domain.ArticleFilter{Limit: limit, Category: category, PublishedOnly: true, Page: 1})
}

// Popular 列出推荐文章
func (s *ArticleService) Popular(ctx context.Context, limit int) domain.Result[[]domain.Article] {
	limit = domain.ClampLimit(limit, 6)
	if !s.Configured() {
		return withFallback(s, "popular", domain.Fallback(fallbackPopular(limit), ReasonNotConfigured))
	}

	key := fmt.Sprintf("popular:%d", limit)
	if articles, ok := cached[[]domain.Article](s, key); ok {
		return domain.Ok(articles)
	}

	res, err := s.backend.QueryDatabase(ctx, s.databaseID, notion.Query{
		Filter:   notion.And(notion.PublishedFilter(), notion.FeaturedFilter()),
		Sorts:    notion.NewestFirst(),
		PageSize: limit,
	})
	if err != nil {
		s.log.Warn("failed to fetch popular articles, using fallback", zap.Error(err))
		return withFallback(s, "popular", domain.Fallback(fallbackPopular(limit), backendReason(err)))
	}

	articles := s.toArticles(res.Results)
	s.store(key, articles)
	return domain.Ok(articles)
}

// Search 按关键字搜索文章，关键字为空时返回 Invalid 错误
//
// 匹配规则为大小写不敏感的子串匹配，覆盖标题、摘要和标签。
func (s *ArticleService) Search(ctx context.Context, query string, limit int) domain.Result[[]domain.Article] {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Failed[[]domain.Article](domain.Invalid("Search query is required"))
	}
	limit = domain.ClampLimit(limit, 10)
	if !s.Configured() {
		return withFallback(s, "search", domain.Fallback(fallbackSearch(query, limit), ReasonNotConfigured))
	}

	res, err := s.backend.QueryDatabase(ctx, s.databaseID, notion.Query{
		Filter:   notion.And(notion.PublishedFilter(), notion.TextContainsFilter(query)),
		Sorts:    notion.NewestFirst(),
		PageSize: limit,
	})
	if err != nil {
		s.log.Warn("failed to search articles, using fallback", zap.String("query", query), zap.Error(err))
		return withFallback(s, "search", domain.Fallback(fallbackSearch(query, limit), backendReason(err)))
	}
	return domain.Ok(s.toArticles(res.Results))
}

// Categories 列出文章分类
func (s *ArticleService) Categories(ctx context.Context) domain.Result[[]string] {
	if !s.Configured() {
		return withFallback(s, "categories", domain.Fallback(append([]string(nil), FallbackCategories...), ReasonNotConfigured))
	}

	if categories, ok := cached[[]string](s, "categories"); ok {
		return domain.Ok(categories)
	}

	db, err := s.backend.RetrieveDatabase(ctx, s.databaseID)
	if err != nil {
		s.log.Warn("failed to fetch categories, using fallback", zap.Error(err))
		return withFallback(s, "categories", domain.Fallback(append([]string(nil), FallbackCategories...), backendReason(err)))
	}

	categories := db.SelectOptions("Category")
	s.store("categories", categories)
	return domain.Ok(categories)
}

// ByID 获取单篇文章，不存在时返回 NotFound
func (s *ArticleService) ByID(ctx context.Context, id string) domain.Result[domain.Article] {
	notFound := domain.Failed[domain.Article](domain.NotFound("Article not found"))

	if !s.Configured() {
		if a, ok := fallbackByID(id); ok {
			return withFallback(s, "article", domain.Fallback(a, ReasonNotConfigured))
		}
		return notFound
	}

	page, err := s.backend.RetrievePage(ctx, id)
	if err != nil {
		if notion.IsNotFound(err) {
			return notFound
		}
		s.log.Warn("failed to fetch article", zap.String("id", id), zap.Error(err))
		if a, ok := fallbackByID(id); ok {
			return withFallback(s, "article", domain.Fallback(a, backendReason(err)))
		}
		return notFound
	}
	return domain.Ok(notion.ToArticle(page, s.now()))
}

// Warm 预先拉取首页常用数据写入缓存
func (s *ArticleService) Warm(ctx context.Context) error {
	if !s.Configured() {
		return nil
	}
	if s.cache != nil {
		s.cache.Clear()
	}

	var errs []string
	if r := s.ListArticles(ctx, domain.ArticleFilter{PublishedOnly: true}); r.IsFallback() {
		errs = append(errs, "list: "+r.Reason)
	}
	if r := s.Popular(ctx, 6); r.IsFallback() {
		errs = append(errs, "popular: "+r.Reason)
	}
	if r := s.Categories(ctx); r.IsFallback() {
		errs = append(errs, "categories: "+r.Reason)
	}
	if len(errs) > 0 {
		return fmt.Errorf("warm article cache: %s", strings.Join(errs, "; "))
	}
	return nil
}

// queryPage 沿游标翻页到第 filter.Page 页
func (s *ArticleService) queryPage(ctx context.Context, filter domain.ArticleFilter) (domain.ArticlePage, error) {
	var conditions []map[string]any
	if filter.PublishedOnly {
		conditions = append(conditions, notion.PublishedFilter())
	}
	if filter.Category != "" {
		conditions = append(conditions, notion.CategoryFilter(filter.Category))
	}

	q := notion.Query{
		Filter:   notion.And(conditions...),
		Sorts:    notion.NewestFirst(),
		PageSize: filter.Limit,
	}

	for page := 1; ; page++ {
		res, err := s.backend.QueryDatabase(ctx, s.databaseID, q)
		if err != nil {
			return domain.ArticlePage{}, err
		}
		if page == filter.Page {
			articles := s.toArticles(res.Results)
			return domain.ArticlePage{Articles: articles, Total: len(articles), HasMore: res.HasMore}, nil
		}
		if !res.HasMore || res.NextCursor == nil {
			return domain.ArticlePage{Articles: []domain.Article{}}, nil
		}
		q.StartCursor = *res.NextCursor
	}
}

func (s *ArticleService) toArticles(pages []notion.Page) []domain.Article {
	now := s.now()
	out := make([]domain.Article, 0, len(pages))
	for _, p := range pages {
		out = append(out, notion.ToArticle(p, now))
	}
	return out
}

func (s *ArticleService) store(key string, v any) {
	if s.cache != nil {
		s.cache.Set("articles:"+key, v, s.cacheTTL)
	}
}

func cached[T any](s *ArticleService, key string) (T, bool) {
	var zero T
	if s.cache == nil {
		return zero, false
	}
	v, ok := s.cache.Get("articles:" + key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// withFallback 记录兜底指标后原样返回结果
func withFallback[T any](s *ArticleService, op string, r domain.Result[T]) domain.Result[T] {
	if s.metrics != nil {
		label := "backend_error"
		if r.Reason == ReasonNotConfigured {
			label = "not_configured"
		}
		s.metrics.RecordContentFallback(op, label)
	}
	return r
}

func backendReason(err error) string {
	return fmt.Sprintf("%s: %v", reasonBackendError, err)
}

// fallbackPage 在兜底文章上应用分类与分页
func fallbackPage(filter domain.ArticleFilter) domain.ArticlePage {
	filtered := make([]domain.Article, 0)
	for _, a := range fallbackArticles() {
		if filter.Category != "" && !strings.EqualFold(a.Category, filter.Category) {
			continue
		}
		if filter.PublishedOnly && !a.Published {
			continue
		}
		filtered = append(filtered, a)
	}

	filter = filter.Normalize()
	if filter.Page-1 > len(filtered)/filter.Limit {
		return domain.ArticlePage{Articles: []domain.Article{}, Total: len(filtered)}
	}
	start := min((filter.Page-1)*filter.Limit, len(filtered))
	end := min(start+filter.Limit, len(filtered))

	return domain.ArticlePage{
		Articles: filtered[start:end],
		Total:    len(filtered),
		HasMore:  len(filtered) > end,
	}
}

func fallbackPopular(limit int) []domain.Article {
	articles := fallbackArticles()
	out := make([]domain.Article, 0, min(limit, len(articles)))
	for _, a := range articles {
		if a.Popular && len(out) < limit {
			out = append(out, a)
		}
	}
	return out
}

func fallbackSearch(query string, limit int) []domain.Article {
	fold := cases.Fold()
	needle := fold.String(query)
	contains := func(s string) bool { return strings.Contains(fold.String(s), needle) }

	out := make([]domain.Article, 0)
	for _, a := range fallbackArticles() {
		if len(out) >= limit {
			break
		}
		match := contains(a.Title) || contains(a.Excerpt)
		for _, tag := range a.Tags {
			match = match || contains(tag)
		}
		if match {
			out = append(out, a)
		}
	}
	return out
}

func fallbackByID(id string) (domain.Article, bool) {
	for _, a := range fallbackArticles() {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Article{}, false
}
