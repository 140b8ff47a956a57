package tui

import (
	"github.com/charmbracelet/lipgloss"

	"stealthmail/backend/internal/view"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorPurple = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite).
	Background(colorBlue).
	Padding(0, 1)

var panelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder)

var addressStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite)

var selectedStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorBlue)

var subtleStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var warnStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed)

var unreadStyle = lipgloss.NewStyle().
	Foreground(colorBlue).
	Bold(true)

var okStyle = lipgloss.NewStyle().
	Foreground(colorGreen)

// badgeStyle 分类徽章
func badgeStyle(c view.Color) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch c {
	case view.ColorBlue:
		return base.Foreground(colorBlue)
	case view.ColorGreen:
		return base.Foreground(colorGreen)
	case view.ColorRed:
		return base.Foreground(colorRed)
	case view.ColorYellow:
		return base.Foreground(colorYellow)
	case view.ColorPurple:
		return base.Foreground(colorPurple)
	default:
		return base.Foreground(colorGray)
	}
}
