// Package tui 是临时邮箱的终端界面。
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stealthmail/backend/internal/domain"
	"stealthmail/backend/internal/gatewayclient"
	"stealthmail/backend/internal/lifecycle"
	"stealthmail/backend/internal/view"
)

const (
	popularLimit   = 6
	requestTimeout = 30 * time.Second
	maxBarWidth    = 60
)

// Mailbox 界面依赖的生命周期控制器
type Mailbox interface {
	Start(ctx context.Context) error
	Refresh(ctx context.Context) error
	Delete(ctx context.Context) error
	CheckInbox(ctx context.Context) error
	Open(ctx context.Context, id string) (domain.Message, error)
	CloseMessage()
	Snapshot() lifecycle.Snapshot
}

// ArticleSource 文章来源
type ArticleSource interface {
	PopularArticles(ctx context.Context, limit int) (gatewayclient.ArticleList, error)
}

type mode int

const (
	modeInbox mode = iota
	modeMessage
	modeArticles
)

// SnapshotMsg 控制器状态变化
type SnapshotMsg struct {
	Snapshot lifecycle.Snapshot
}

type articlesMsg struct {
	list gatewayclient.ArticleList
	err  error
}

type openedMsg struct {
	err error
}

type statusMsg string

// Model bubbletea 根模型
type Model struct {
	mailbox  Mailbox
	articles ArticleSource
	keys     KeyMap
	help     help.Model
	bar      progress.Model

	snap          lifecycle.Snapshot
	mode          mode
	cursor        int
	articleCursor int
	articleList   gatewayclient.ArticleList
	articleErr    string
	status        string
	width         int
	height        int

	copy func(string) error
	now  func() time.Time
}

// New 创建界面模型
func New(mailbox Mailbox, articles ArticleSource) Model {
	return Model{
		mailbox:  mailbox,
		articles: articles,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		snap:     mailbox.Snapshot(),
		copy:     clipboard.WriteAll,
		now:      time.Now,
	}
}

// Run 启动终端界面，阻塞到用户退出
func Run(ctx context.Context, ctrl *lifecycle.Controller, articles ArticleSource) error {
	p := tea.NewProgram(New(ctrl, articles), tea.WithAltScreen(), tea.WithContext(ctx))
	ctrl.OnChange(func(s lifecycle.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: s})
	})
	_, err := p.Run()
	return err
}

// Init 创建邮箱并加载文章
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd(), m.loadArticlesCmd())
}

// Update 处理消息
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = min(maxBarWidth, max(10, msg.Width-8))
		m.help.Width = msg.Width
		return m, nil

	case SnapshotMsg:
		m.snap = msg.Snapshot
		if m.cursor >= len(m.snap.Messages) {
			m.cursor = max(0, len(m.snap.Messages)-1)
		}
		if m.mode == modeMessage && m.snap.Opened == nil {
			m.mode = modeInbox
		}
		return m, nil

	case articlesMsg:
		if msg.err != nil {
			m.articleErr = domain.MessageOf(msg.err)
			return m, nil
		}
		m.articleErr = ""
		m.articleList = msg.list
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.status = "Failed to open message: " + domain.MessageOf(msg.err)
			return m, nil
		}
		m.mode = modeMessage
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Copy):
		addr := m.snap.Mailbox.Address
		if addr == "" {
			return m, nil
		}
		if err := m.copy(addr); err != nil {
			m.status = "Copy failed: " + err.Error()
		} else {
			m.status = "Copied!"
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		if m.snap.State == lifecycle.StateDeleted {
			return m, nil
		}
		m.status = "Generating..."
		m.mode = modeInbox
		m.cursor = 0
		return m, m.runCmd(m.mailbox.Refresh, "New email ready", "Failed to generate email")

	case key.Matches(msg, m.keys.Delete):
		if m.snap.State != lifecycle.StateActive {
			return m, nil
		}
		m.mode = modeInbox
		return m, m.runCmd(m.mailbox.Delete, "Mailbox deleted", "Failed to delete email")

	case key.Matches(msg, m.keys.Check):
		return m, m.runCmd(m.mailbox.CheckInbox, "", "Failed to fetch messages")

	case key.Matches(msg, m.keys.Articles):
		if m.mode == modeArticles {
			m.mode = modeInbox
			return m, nil
		}
		m.mode = modeArticles
		if len(m.articleList.Articles) == 0 {
			return m, m.loadArticlesCmd()
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		switch m.mode {
		case modeMessage:
			m.mode = modeInbox
			mailbox := m.mailbox
			return m, func() tea.Msg {
				mailbox.CloseMessage()
				return nil
			}
		case modeArticles:
			m.mode = modeInbox
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.mode == modeArticles {
			m.articleCursor = max(0, m.articleCursor-1)
		} else if m.mode == modeInbox {
			m.cursor = max(0, m.cursor-1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.mode == modeArticles {
			m.articleCursor = min(max(0, len(m.articleList.Articles)-1), m.articleCursor+1)
		} else if m.mode == modeInbox {
			m.cursor = min(max(0, len(m.snap.Messages)-1), m.cursor+1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.mode != modeInbox || m.cursor >= len(m.snap.Messages) {
			return m, nil
		}
		return m, m.openCmd(m.snap.Messages[m.cursor].ID)
	}
	return m, nil
}

func (m Model) startCmd() tea.Cmd {
	return m.runCmd(m.mailbox.Start, "", "Failed to generate email")
}

// runCmd 在后台执行控制器操作，结果转换为状态栏消息
func (m Model) runCmd(op func(context.Context) error, success, failure string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			return statusMsg(failure + ": " + domain.MessageOf(err))
		}
		return statusMsg(success)
	}
}

func (m Model) openCmd(id string) tea.Cmd {
	mailbox := m.mailbox
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := mailbox.Open(ctx, id)
		return openedMsg{err: err}
	}
}

func (m Model) loadArticlesCmd() tea.Cmd {
	if m.articles == nil {
		return nil
	}
	articles := m.articles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := articles.PopularArticles(ctx, popularLimit)
		return articlesMsg{list: list, err: err}
	}
}

// View 渲染界面
func (m Model) View() string {
	sections := []string{headerStyle.Render("Stealth Mail"), m.mailboxView()}

	switch m.mode {
	case modeMessage:
		sections = append(sections, m.messageView())
	case modeArticles:
		sections = append(sections, m.articlesView())
	default:
		sections = append(sections, m.inboxView())
	}

	if m.status != "" {
		sections = append(sections, subtleStyle.Render(m.status))
	}
	sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) mailboxView() string {
	s := m.snap
	var b strings.Builder

	switch s.State {
	case "", lifecycle.StateUninitialized, lifecycle.StateCreating:
		b.WriteString("Generating...")
		return panelStyle.Render(b.String())
	case lifecycle.StateDeleted:
		b.WriteString(subtleStyle.Render("Mailbox deleted. Press q to quit."))
		return panelStyle.Render(b.String())
	}

	b.WriteString("Your Temporary Email\n")
	b.WriteString(addressStyle.Render(s.Mailbox.Address))
	if s.Mailbox.Synthetic {
		b.WriteString("\n" + warnStyle.Render("Offline address: it cannot receive mail"))
	}
	b.WriteString("\n\n")

	if s.State == lifecycle.StateExpired {
		b.WriteString(errorStyle.Render("Expired. Press n for a new email."))
		return panelStyle.Render(b.String())
	}

	fmt.Fprintf(&b, "Time remaining: %s\n", okStyle.Render(view.FormatCountdown(s.Remaining)))
	b.WriteString(m.bar.ViewAs(view.Progress(s.Remaining, s.Lifetime)))
	return panelStyle.Render(b.String())
}

func (m Model) inboxView() string {
	s := m.snap
	var b strings.Builder
	fmt.Fprintf(&b, "Inbox (%d unread)\n", s.Unread())

	if len(s.Messages) == 0 {
		if s.HasToken() {
			b.WriteString(subtleStyle.Render("Waiting for incoming emails..."))
		} else {
			b.WriteString(subtleStyle.Render("No messages"))
		}
	}

	now := m.now()
	for i, msg := range s.Messages {
		marker := "  "
		if !msg.Seen {
			marker = unreadStyle.Render("● ")
		}
		line := fmt.Sprintf("%s  %s  %s",
			view.Truncate(view.FormatSender(msg.From), 30),
			view.Truncate(msg.Subject, 50),
			subtleStyle.Render(view.RelativeTime(msg.CreatedAt, now)),
		)
		if i == m.cursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString("\n" + marker + line)
		if preview := view.Preview(msg); preview != "" {
			b.WriteString("\n      " + subtleStyle.Render(preview))
		}
	}

	if s.LastError != "" {
		b.WriteString("\n" + errorStyle.Render(s.LastError))
	}
	return panelStyle.Render(b.String())
}

func (m Model) messageView() string {
	msg := m.snap.Opened
	if msg == nil {
		return panelStyle.Render("Loading messages...")
	}

	var b strings.Builder
	b.WriteString(addressStyle.Render(msg.Subject) + "\n")
	fmt.Fprintf(&b, "From: %s\n", view.FormatSender(msg.From))
	fmt.Fprintf(&b, "Received: %s\n\n", view.RelativeTime(msg.CreatedAt, m.now()))

	body := view.Body(*msg)
	if m.width > 8 {
		body = lipgloss.NewStyle().Width(m.width - 8).Render(body)
	}
	b.WriteString(body)
	if msg.HasAttachments {
		fmt.Fprintf(&b, "\n\n%s", subtleStyle.Render(fmt.Sprintf("%d attachment(s)", len(msg.Attachments))))
	}
	return panelStyle.Render(b.String())
}

func (m Model) articlesView() string {
	var b strings.Builder
	b.WriteString("Privacy Articles")
	if m.articleList.Source == domain.SourceFallback {
		b.WriteString(subtleStyle.Render("  (offline content)"))
	}

	if m.articleErr != "" {
		b.WriteString("\n" + errorStyle.Render(m.articleErr))
	}
	if len(m.articleList.Articles) == 0 && m.articleErr == "" {
		b.WriteString("\n" + subtleStyle.Render("Loading articles..."))
	}

	for i, a := range m.articleList.Articles {
		badge := badgeStyle(view.CategoryColor(a.Category)).Render(view.CategoryLabel(a.Category))
		title := a.Title
		if i == m.articleCursor {
			title = selectedStyle.Render("> " + title)
		} else {
			title = "  " + title
		}
		b.WriteString("\n" + title + " " + badge)

		meta := []string{}
		if d := view.FormatArticleDate(a.Date); d != "" {
			meta = append(meta, d)
		}
		if a.ReadTime != "" {
			meta = append(meta, a.ReadTime)
		}
		if a.Author != "" {
			meta = append(meta, a.Author)
		}
		if len(meta) > 0 {
			b.WriteString("\n    " + subtleStyle.Render(strings.Join(meta, " · ")))
		}
		if a.Excerpt != "" {
			b.WriteString("\n    " + view.Truncate(a.Excerpt, view.PreviewLength))
		}
	}
	return panelStyle.Render(b.String())
}
