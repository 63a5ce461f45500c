package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	send    key.Binding
	approve key.Binding
	back    key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		approve: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "approve")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		restart: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "new clip")),
		quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.send, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.send, k.approve},
		{k.back, k.restart, k.quit},
	}
}
