package service

import (
	"time"

	"stealthmail/backend/internal/domain"
)

// FallbackCategories 内容后台不可用时返回的分类
var FallbackCategories = []string{"Privacy", "Security", "Guide", "Tips", "News"}

// fallbackArticles 返回静态兜底文章的新副本，调用方可以自由修改
func fallbackArticles() []domain.Article {
	return []domain.Article{
		{
			ID:         "1",
			Title:      "Best Temporary Email Services in 2025: Complete Guide",
			Excerpt:    "Wondering what is the best service for temporary email service to use for your needs? Explore the top offerings along with stealthmail.com",
			Author:     "Stealth Mail Team",
			Category:   "Guide",
			Date:       mustDate("2025-10-01T10:00:00Z"),
			ReadTime:   "5 min read",
			URL:        "#",
			Published:  true,
			Popular:    true,
			Views:      1250,
			Tags:       []string{"guide", "temporary-email", "services"},
			CoverImage: "https://images.unsplash.com/photo-1446776653964-20c1d3a81b06?w=800&h=400&fit=crop",
		},
		{
			ID:         "2",
			Title:      "Disposable Temporary Email vs Regular Email: Complete Security Comparison Guide 2025",
			Excerpt:    "Comparison of features, pros and cons of a disposable email vs regular email from the perspective of security and other paradigms",
			Author:     "Security Team",
			Category:   "Security",
			Date:       mustDate("2025-09-22T14:30:00Z"),
			ReadTime:   "8 min read",
			URL:        "#",
			Published:  true,
			Popular:    true,
			Views:      980,
			Tags:       []string{"security", "comparison", "email"},
			CoverImage: "https://images.unsplash.com/photo-1563013544-824ae1b704d3?w=800&h=400&fit=crop",
		},
		{
			ID:         "3",
			Title:      "API-based Mail Service",
			Excerpt:    "Explore the use cases of an API based Mail service and understand what it can do for you",
			Author:     "Tech Team",
			Category:   "Technology",
			Date:       mustDate("2025-09-16T09:15:00Z"),
			ReadTime:   "6 min read",
			URL:        "#",
			Published:  true,
			Popular:    true,
			Views:      750,
			Tags:       []string{"api", "mail-service", "technology"},
			CoverImage: "https://images.unsplash.com/photo-1611224923853-80b023f02d71?w=800&h=400&fit=crop",
		},
		{
			ID:         "4",
			Title:      "What Is Temporary Email and How Does It Work?",
			Excerpt:    "Learn the fundamentals of temporary email services and understand how they protect your privacy online",
			Author:     "Education Team",
			Category:   "Education",
			Date:       mustDate("2025-09-16T16:45:00Z"),
			ReadTime:   "4 min read",
			URL:        "#",
			Published:  true,
			Popular:    false,
			Views:      1100,
			Tags:       []string{"education", "how-to", "basics"},
			CoverImage: "https://images.unsplash.com/photo-1552664730-d307ca884978?w=800&h=400&fit=crop",
		},
		{
			ID:         "5",
			Title:      "Are Temporary Email Services Safe? Answers to 10 Common Questions",
			Excerpt:    "Get answers to the most frequently asked questions about temporary email security and privacy",
			Author:     "Security Team",
			Category:   "Security",
			Date:       mustDate("2025-09-01T16:45:00Z"),
			ReadTime:   "7 min read",
			URL:        "#",
			Published:  true,
			Popular:    false,
			Views:      890,
			Tags:       []string{"security", "faq", "safety"},
			CoverImage: "https://images.unsplash.com/photo-1550751827-4bd374c3f58b?w=800&h=400&fit=crop",
		},
		{
			ID:         "6",
			Title:      "Top 7 Reasons to Use Disposable Email Addresses in 2025",
			Excerpt:    "Discover the key benefits of using disposable email addresses for online privacy and security",
			Author:     "Privacy Team",
			Category:   "Privacy",
			Date:       mustDate("2025-09-01T16:45:00Z"),
			ReadTime:   "5 min read",
			URL:        "#",
			Published:  true,
			Popular:    false,
			Views:      1050,
			Tags:       []string{"privacy", "benefits", "disposable-email"},
			CoverImage: "https://images.unsplash.com/photo-1563986768609-322da13575f3?w=800&h=400&fit=crop",
		},
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
