package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 终端界面的按键绑定
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Back     key.Binding
	Copy     key.Binding
	New      key.Binding
	Delete   key.Binding
	Check    key.Binding
	Articles key.Binding
	Quit     key.Binding
}

// DefaultKeyMap 默认按键
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy address"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new email"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Check: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "check inbox"),
		),
		Articles: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "articles"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp 底部提示
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Copy, k.New, k.Delete, k.Open, k.Articles, k.Quit}
}

// FullHelp 完整按键列表
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back},
		{k.Copy, k.New, k.Delete, k.Check},
		{k.Articles, k.Quit},
	}
}
