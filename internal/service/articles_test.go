package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stealthmail/backend/internal/cache"
	"stealthmail/backend/internal/domain"
	"stealthmail/backend/internal/upstream/notion"
)

// MockContentBackend 模拟内容后台
type MockContentBackend struct {
	mock.Mock
}

func (m *MockContentBackend) QueryDatabase(ctx context.Context, databaseID string, q notion.Query) (notion.QueryResult, error) {
	args := m.Called(ctx, databaseID, q)
	return args.Get(0).(notion.QueryResult), args.Error(1)
}

func (m *MockContentBackend) RetrieveDatabase(ctx context.Context, databaseID string) (notion.Database, error) {
	args := m.Called(ctx, databaseID)
	return args.Get(0).(notion.Database), args.Error(1)
}

func (m *MockContentBackend) RetrievePage(ctx context.Context, pageID string) (notion.Page, error) {
	args := m.Called(ctx, pageID)
	return args.Get(0).(notion.Page), args.Error(1)
}

type fallbackCall struct{ op, reason string }

type fallbackSpy struct{ calls []fallbackCall }

func (f *fallbackSpy) RecordContentFallback(op, reason string) {
	f.calls = append(f.calls, fallbackCall{op, reason})
}

func livePage(id, title string) notion.Page {
	return notion.Page{
		ID:          id,
		CreatedTime: "2025-10-01T10:00:00.000Z",
		Properties: map[string]notion.Property{
			"Name":      {Type: "title", Title: []notion.RichText{{PlainText: title}}},
			"Published": {Type: "date", Date: &notion.DateValue{Start: "2025-10-01"}},
		},
	}
}

func newLiveArticleService(backend ContentBackend, spy FallbackRecorder) *ArticleService {
	return NewArticleService(backend, "db-1", cache.NewLocalCache[any](100, time.Minute), time.Minute, nil, spy)
}

func TestArticleService_Unconfigured(t *testing.T) {
	ctx := context.Background()
	spy := &fallbackSpy{}
	s := NewArticleService(nil, "", nil, time.Minute, nil, spy)

	t.Run("列表返回兜底文章", func(t *testing.T) {
		r := s.ListArticles(ctx, domain.ArticleFilter{})
		require.True(t, r.IsFallback())
		assert.Equal(t, ReasonNotConfigured, r.Reason)
		assert.Len(t, r.Data.Articles, 6)
		assert.Equal(t, 6, r.Data.Total)
		assert.False(t, r.Data.HasMore)
	})

	t.Run("列表分页", func(t *testing.T) {
		r := s.ListArticles(ctx, domain.ArticleFilter{Limit: 4, Page: 2})
		require.Len(t, r.Data.Articles, 2)
		assert.Equal(t, "5", r.Data.Articles[0].ID)
		assert.False(t, r.Data.HasMore)

		r = s.ListArticles(ctx, domain.ArticleFilter{Limit: 4})
		assert.Len(t, r.Data.Articles, 4)
		assert.True(t, r.Data.HasMore)
	})

	t.Run("超大页码返回空页", func(t *testing.T) {
		for _, page := range []int{3, 1000, 1 << 62} {
			r := s.ListArticles(ctx, domain.ArticleFilter{Limit: 4, Page: page})
			require.True(t, r.IsFallback())
			assert.NotNil(t, r.Data.Articles)
			assert.Empty(t, r.Data.Articles)
			assert.Equal(t, 6, r.Data.Total)
			assert.False(t, r.Data.HasMore)
		}
	})

	t.Run("超大条数被截断", func(t *testing.T) {
		assert.NotPanics(t, func() {
			r := s.Popular(ctx, 1<<50)
			assert.NotEmpty(t, r.Data)

			r = s.Search(ctx, "email", 1_000_000_000)
			assert.NotEmpty(t, r.Data)

			p := s.ListArticles(ctx, domain.ArticleFilter{Limit: 1 << 50, Page: 1})
			assert.Len(t, p.Data.Articles, 6)
		})
	})

	t.Run("分类大小写不敏感", func(t *testing.T) {
		r := s.ByCategory(ctx, "security", 10)
		require.Len(t, r.Data.Articles, 2)
		for _, a := range r.Data.Articles {
			assert.Equal(t, "Security", a.Category)
		}
	})

	t.Run("未知分类返回空列表", func(t *testing.T) {
		r := s.ByCategory(ctx, "Cooking", 10)
		assert.True(t, r.IsFallback())
		assert.Empty(t, r.Data.Articles)
		assert.NotNil(t, r.Data.Articles)
	})

	t.Run("推荐文章", func(t *testing.T) {
		r := s.Popular(ctx, 6)
		require.Len(t, r.Data, 3)
		for _, a := range r.Data {
			assert.True(t, a.Popular)
		}
		assert.Len(t, s.Popular(ctx, 2).Data, 2)
	})

	t.Run("搜索匹配标题摘要与标签", func(t *testing.T) {
		r := s.Search(ctx, "PRIVACY", 10)
		require.True(t, r.IsFallback())
		ids := make([]string, 0, len(r.Data))
		for _, a := range r.Data {
			ids = append(ids, a.ID)
		}
		assert.Equal(t, []string{"4", "5", "6"}, ids)

		r = s.Search(ctx, "faq", 10)
		require.Len(t, r.Data, 1)
		assert.Equal(t, "5", r.Data[0].ID)
	})

	t.Run("搜索无结果", func(t *testing.T) {
		r := s.Search(ctx, "kubernetes", 10)
		assert.True(t, r.IsFallback())
		assert.Empty(t, r.Data)
	})

	t.Run("空关键字为参数错误", func(t *testing.T) {
		r := s.Search(ctx, "   ", 10)
		require.True(t, r.IsErr())
		assert.Equal(t, domain.KindInvalid, domain.KindOf(r.Err))
	})

	t.Run("分类列表", func(t *testing.T) {
		r := s.Categories(ctx)
		assert.Equal(t, []string{"Privacy", "Security", "Guide", "Tips", "News"}, r.Data)
	})

	t.Run("按 ID 获取", func(t *testing.T) {
		r := s.ByID(ctx, "3")
		require.True(t, r.IsFallback())
		assert.Equal(t, "API-based Mail Service", r.Data.Title)

		r = s.ByID(ctx, "999")
		require.True(t, r.IsErr())
		assert.Equal(t, domain.KindNotFound, domain.KindOf(r.Err))
	})

	t.Run("记录兜底指标", func(t *testing.T) {
		require.NotEmpty(t, spy.calls)
		assert.Equal(t, "not_configured", spy.calls[0].reason)
	})
}

func TestArticleService_Live(t *testing.T) {
	ctx := context.Background()

	t.Run("实时结果被缓存", func(t *testing.T) {
		backend := new(MockContentBackend)
		backend.On("QueryDatabase", ctx, "db-1", mock.Anything).
			Return(notion.QueryResult{Results: []notion.Page{livePage("a", "Alpha")}}, nil).Once()

		s := newLiveArticleService(backend, nil)
		r := s.ListArticles(ctx, domain.ArticleFilter{PublishedOnly: true})
		require.True(t, r.IsOk())
		assert.Equal(t, domain.SourceLive, r.Source)
		require.Len(t, r.Data.Articles, 1)
		assert.Equal(t, "Alpha", r.Data.Articles[0].Title)

		r = s.ListArticles(ctx, domain.ArticleFilter{PublishedOnly: true})
		assert.True(t, r.IsOk())
		backend.AssertNumberOfCalls(t, "QueryDatabase", 1)
	})

	t.Run("沿游标翻到第二页", func(t *testing.T) {
		cursor := "cur-2"
		backend := new(MockContentBackend)
		backend.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(q notion.Query) bool { return q.StartCursor == "" })).
			Return(notion.QueryResult{Results: []notion.Page{livePage("a", "Alpha")}, HasMore: true, NextCursor: &cursor}, nil)
		backend.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(q notion.Query) bool { return q.StartCursor == cursor })).
			Return(notion.QueryResult{Results: []notion.Page{livePage("b", "Beta")}}, nil)

		r := newLiveArticleService(backend, nil).ListArticles(ctx, domain.ArticleFilter{Limit: 1, Page: 2})
		require.True(t, r.IsOk())
		require.Len(t, r.Data.Articles, 1)
		assert.Equal(t, "b", r.Data.Articles[0].ID)
		assert.False(t, r.Data.HasMore)
	})

	t.Run("页码超出范围返回空列表", func(t *testing.T) {
		backend := new(MockContentBackend)
		backend.On("QueryDatabase", ctx, "db-1", mock.Anything).
			Return(notion.QueryResult{Results: []notion.Page{livePage("a", "Alpha")}}, nil)

		r := newLiveArticleService(backend, nil).ListArticles(ctx, domain.ArticleFilter{Page: 3})
		require.True(t, r.IsOk())
		assert.Empty(t, r.Data.Articles)
	})

	t.Run("后端出错时回退", func(t *testing.T) {
		spy := &fallbackSpy{}
		backend := new(MockContentBackend)
		backend.On("QueryDatabase", ctx, "db-1", mock.Anything).
			Return(notion.QueryResult{}, errors.New("connection reset"))

		r := newLiveArticleService(backend, spy).Popular(ctx, 6)
		require.True(t, r.IsFallback())
		assert.Contains(t, r.Reason, "connection reset")
		assert.Len(t, r.Data, 3)
		assert.Equal(t, []fallbackCall{{"popular", "backend_error"}}, spy.calls)
	})

	t.Run("分类来自数据库结构", func(t *testing.T) {
		backend := new(MockContentBackend)
		db := notion.Database{Properties: map[string]notion.DatabaseProperty{}}
		prop := notion.DatabaseProperty{Type: "select"}
		prop.Select = &struct {
			Options []notion.SelectOption `json:"options"`
		}{Options: []notion.SelectOption{{Name: "Privacy"}, {Name: "Guide"}}}
		db.Properties["Category"] = prop
		backend.On("RetrieveDatabase", ctx, "db-1").Return(db, nil).Once()

		s := newLiveArticleService(backend, nil)
		assert.Equal(t, []string{"Privacy", "Guide"}, s.Categories(ctx).Data)
		assert.Equal(t, []string{"Privacy", "Guide"}, s.Categories(ctx).Data)
		backend.AssertNumberOfCalls(t, "RetrieveDatabase", 1)
	})

	t.Run("文章不存在", func(t *testing.T) {
		backend := new(MockContentBackend)
		backend.On("RetrievePage", ctx, "1").
			Return(notion.Page{}, &notion.APIError{Status: http.StatusNotFound, Code: "object_not_found"})

		r := newLiveArticleService(backend, nil).ByID(ctx, "1")
		require.True(t, r.IsErr())
		assert.Equal(t, domain.KindNotFound, domain.KindOf(r.Err))
	})

	t.Run("获取文章失败时按 ID 回退", func(t *testing.T) {
		backend := new(MockContentBackend)
		backend.On("RetrievePage", ctx, mock.Anything).
			Return(notion.Page{}, &notion.APIError{Status: http.StatusBadGateway})

		s := newLiveArticleService(backend, nil)
		r := s.ByID(ctx, "2")
		require.True(t, r.IsFallback())
		assert.Equal(t, "2", r.Data.ID)

		r = s.ByID(ctx, "unknown")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(r.Err))
	})

	t.Run("Warm 在后端失败时返回错误", func(t *testing.T) {
		backend := new(MockContentBackend)
		backend.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(notion.QueryResult{}, errors.New("down"))
		backend.On("RetrieveDatabase", ctx, "db-1").Return(notion.Database{}, errors.New("down"))

		err := newLiveArticleService(backend, nil).Warm(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list")
		assert.Contains(t, err.Error(), "categories")
	})

	t.Run("未配置时 Warm 不做任何事", func(t *testing.T) {
		assert.NoError(t, NewArticleService(nil, "", nil, time.Minute, nil, nil).Warm(ctx))
	})
}
