package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Refresh  key.Binding
	Sleep    key.Binding
	LightOff key.Binding
	Sync     key.Binding
	StopAll  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev device")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next device")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Sleep:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sleep/wake")),
		LightOff: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "lights off")),
		Sync:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "bar sync")),
		StopAll:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop all")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Sleep, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Refresh, k.Sleep, k.LightOff},
		{k.Sync, k.StopAll},
		{k.Help, k.Quit},
	}
}
