// Package view 提供与界面无关的展示格式化：倒计时、相对时间、摘要与分类配色。
package view

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stealthmail/backend/internal/domain"
)

// PreviewLength 收件箱摘要的最大字符数
const PreviewLength = 100

// ArticleDateLayout 文章日期格式
const ArticleDateLayout = "January 2, 2006"

const ellipsis = "..."

// Color 分类徽章的配色名
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorGray   Color = "gray"
)

var categoryColors = map[string]Color{
	"privacy":  ColorBlue,
	"guide":    ColorGreen,
	"security": ColorRed,
	"tips":     ColorYellow,
	"news":     ColorPurple,
}

// FormatCountdown 把剩余时间格式化为 m:ss，不足一秒按零处理
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Progress 返回剩余时间占总时长的比例，范围 [0, 1]
func Progress(remaining, lifetime time.Duration) float64 {
	if lifetime <= 0 || remaining <= 0 {
		return 0
	}
	if remaining >= lifetime {
		return 1
	}
	return float64(remaining) / float64(lifetime)
}

// RelativeTime 返回相对时间描述。
//
// 不足一分钟为 "Just now"，一小时内为 "Nm ago"，一天内为 "Nh ago"，更早显示日期。
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	minutes := int(now.Sub(t) / time.Minute)
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return t.Local().Format("1/2/2006")
	}
}

// Truncate 按字符截断，超出时追加 "..."
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + ellipsis
}

// Preview 收件箱列表中的一行摘要
//
// 依次使用 intro、正文文本、去标签后的 HTML。
func Preview(m domain.Message) string {
	text := collapseSpace(m.Intro)
	if text == "" {
		text = collapseSpace(m.Text)
	}
	if text == "" && m.HTML != "" {
		text = StripHTML(m.HTML)
	}
	return Truncate(text, PreviewLength)
}

// Body 邮件查看器中显示的正文，HTML 邮件转换为纯文本
func Body(m domain.Message) string {
	if strings.TrimSpace(m.Text) != "" {
		return strings.TrimSpace(m.Text)
	}
	if m.HTML != "" {
		return StripHTML(m.HTML)
	}
	return ""
}

// StripHTML 去掉标签、脚本与样式，返回压缩空白后的文本
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return collapseSpace(doc.Text())
}

// FormatSender 发件人显示名
func FormatSender(a domain.Address) string {
	switch {
	case a.Name != "" && a.Address != "":
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	case a.Name != "":
		return a.Name
	default:
		return a.Address
	}
}

// CategoryColor 分类对应的徽章颜色，未知分类为灰色
func CategoryColor(category string) Color {
	if c, ok := categoryColors[strings.ToLower(strings.TrimSpace(category))]; ok {
		return c
	}
	return ColorGray
}

// CategoryLabel 分类徽章文字
func CategoryLabel(category string) string {
	return cases.Title(language.English).String(strings.TrimSpace(category))
}

// FormatArticleDate 文章日期，零值返回空串
func FormatArticleDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ArticleDateLayout)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
