package notion

// 以下函数构造文章数据库使用的查询过滤条件

// PublishedFilter 已发布：Published 日期非空或 Public 勾选
func PublishedFilter() map[string]any {
	return map[string]any{
		"or": []any{
			map[string]any{"property": "Published", "date": map[string]any{"is_not_empty": true}},
			map[string]any{"property": "Public", "checkbox": map[string]any{"equals": true}},
		},
	}
}

// CategoryFilter 指定分类
func CategoryFilter(category string) map[string]any {
	return map[string]any{"property": "Category", "select": map[string]any{"equals": category}}
}

// FeaturedFilter 推荐文章
func FeaturedFilter() map[string]any {
	return map[string]any{"property": "Featured", "checkbox": map[string]any{"equals": true}}
}

// TextContainsFilter 标题或摘要包含 query
func TextContainsFilter(query string) map[string]any {
	return map[string]any{
		"or": []any{
			map[string]any{"property": "Name", "title": map[string]any{"contains": query}},
			map[string]any{"property": "Description", "rich_text": map[string]any{"contains": query}},
		},
	}
}

// And 组合条件，没有条件时返回 nil（不带 filter 查询）
func And(filters ...map[string]any) any {
	parts := make([]any, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return map[string]any{"and": parts}
}

// NewestFirst 按创建时间倒序
func NewestFirst() []Sort {
	return []Sort{{Timestamp: "created_time", Direction: "descending"}}
}
