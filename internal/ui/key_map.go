package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	tags     key.Binding
	favorite key.Binding
	toggle   key.Binding
	switchTo key.Binding
	sync     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		tags:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tags")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle step")),
		switchTo: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "resources/trainings")),
		sync:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.tags, k.favorite, k.toggle},
		{k.switchTo, k.sync, k.quit},
	}
}
