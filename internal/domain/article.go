package domain

import "time"

// Article 内容后台中的一篇文章
type Article struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	Author     string    `json:"author"`
	Category   string    `json:"category"`
	Date       time.Time `json:"date"`
	ReadTime   string    `json:"readTime"`
	URL        string    `json:"url"`
	Published  bool      `json:"published"`
	Popular    bool      `json:"popular"`
	Views      int       `json:"views"`
	Tags       []string  `json:"tags"`
	CoverImage string    `json:"coverImage,omitempty"`
}

// ArticleFilter 文章列表查询条件
type ArticleFilter struct {
	Limit         int
	Category      string
	PublishedOnly bool
	Page          int
}

// 分页上限，与 Notion 单页最大条数一致
const (
	MaxLimit = 100
	MaxPage  = 10000
)

// ClampLimit 把条数限制在 [1, MaxLimit]，非正数取 def
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxLimit)
}

// Normalize 补齐默认分页参数并限制上限
func (f ArticleFilter) Normalize() ArticleFilter {
	f.Limit = ClampLimit(f.Limit, 10)
	if f.Page <= 0 {
		f.Page = 1
	}
	f.Page = min(f.Page, MaxPage)
	return f
}

// ArticlePage 文章列表的一页
type ArticlePage struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}
