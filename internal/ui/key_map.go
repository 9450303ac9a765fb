package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the addon prompt.
type keyMap struct {
	submit key.Binding
	review key.Binding
	back   key.Binding
	remove key.Binding
	finish key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add")),
		review: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "review")),
		back:   key.NewBinding(key.WithKeys("esc", "tab"), key.WithHelp("esc", "back")),
		remove: key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
		finish: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "done")),
		quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.submit, k.finish, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.submit, k.review, k.finish},
		{k.back, k.remove, k.quit},
	}
}
