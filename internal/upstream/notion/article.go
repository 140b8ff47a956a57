package notion

import (
	"strings"
	"time"

	"stealthmail/backend/internal/domain"
)

// 文章字段缺省值
const (
	DefaultAuthor   = "Stealth Mail Team"
	DefaultCategory = "General"
	DefaultReadTime = "5 min read"
)

// ToArticle 将页面映射为文章。
//
// 数据库列名并不统一，标题可能叫 Name 或 Title，摘要可能叫 Description 或 Excerpt，
// 封面依次取页面封面、ImageURLs 列、Cover 列。now 用于缺少任何日期时的兜底。
func ToArticle(page Page, now time.Time) domain.Article {
	props := page.Properties

	title := plainText(props, "Name", "Title")
	excerpt := plainText(props, "Description", "Excerpt")
	author := plainText(props, "Author")
	if author == "" {
		author = DefaultAuthor
	}

	tags := []string{}
	if p, ok := props["Tags"]; ok {
		for _, t := range p.MultiSelect {
			tags = append(tags, t.Name)
		}
	}

	category := DefaultCategory
	if p, ok := props["Category"]; ok && p.Select != nil && p.Select.Name != "" {
		category = p.Select.Name
	} else if len(tags) > 0 {
		category = tags[0]
	}

	readTime := DefaultReadTime
	if p, ok := props["ReadTime"]; ok && len(p.RichText) > 0 && p.RichText[0].PlainText != "" {
		readTime = p.RichText[0].PlainText
	}

	published := false
	if p, ok := props["Published"]; ok && p.Date != nil && p.Date.Start != "" {
		published = true
	}
	if p, ok := props["Public"]; ok && p.Checkbox {
		published = true
	}

	views := 0
	if p, ok := props["Views"]; ok && p.Number != nil {
		views = int(*p.Number)
	}

	return domain.Article{
		ID:         page.ID,
		Title:      title,
		Excerpt:    excerpt,
		Author:     author,
		Category:   category,
		Date:       articleDate(page, now),
		ReadTime:   readTime,
		URL:        articleURL(props),
		Published:  published,
		Popular:    checkbox(props, "Featured") || checkbox(props, "Popular"),
		Views:      views,
		Tags:       tags,
		CoverImage: coverImage(page),
	}
}

// plainText 返回第一个存在且非空的标题或富文本列
func plainText(props map[string]Property, names ...string) string {
	for _, name := range names {
		p, ok := props[name]
		if !ok {
			continue
		}
		parts := p.Title
		if len(parts) == 0 {
			parts = p.RichText
		}
		if len(parts) == 0 {
			continue
		}
		var b strings.Builder
		for _, rt := range parts {
			b.WriteString(rt.PlainText)
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func checkbox(props map[string]Property, name string) bool {
	p, ok := props[name]
	return ok && p.Checkbox
}

func articleDate(page Page, now time.Time) time.Time {
	candidates := []string{}
	if p, ok := page.Properties["Published"]; ok && p.Date != nil {
		candidates = append(candidates, p.Date.Start)
	}
	if p, ok := page.Properties["Created"]; ok {
		candidates = append(candidates, p.CreatedTime)
	}
	if p, ok := page.Properties["Last Updated"]; ok {
		candidates = append(candidates, p.LastEditedTime)
	}

	for _, s := range candidates {
		if t, ok := parseDate(s); ok {
			return t
		}
	}
	return now
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func articleURL(props map[string]Property) string {
	if p, ok := props["URL"]; ok && p.URL != nil && *p.URL != "" {
		return *p.URL
	}
	if slug := plainText(props, "Slug"); slug != "" {
		return "/" + strings.TrimPrefix(slug, "/")
	}
	return "#"
}

func coverImage(page Page) string {
	if u := page.Cover.URL(); u != "" {
		return u
	}

	if p, ok := page.Properties["ImageURLs"]; ok {
		if p.Type == "rich_text" || len(p.RichText) > 0 {
			if u := strings.TrimSpace(plainText(page.Properties, "ImageURLs")); strings.HasPrefix(u, "http") {
				return u
			}
		}
		if len(p.Files) > 0 {
			if u := p.Files[0].URL(); u != "" {
				return u
			}
		}
		if p.URL != nil && *p.URL != "" {
			return *p.URL
		}
	}

	if p, ok := page.Properties["Cover"]; ok {
		if len(p.Files) > 0 {
			if u := p.Files[0].URL(); u != "" {
				return u
			}
		}
		if p.URL != nil && *p.URL != "" {
			return *p.URL
		}
	}
	return ""
}
