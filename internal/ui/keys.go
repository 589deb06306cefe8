package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next      key.Binding
	Back      key.Binding
	Up        key.Binding
	Down      key.Binding
	Choose    key.Binding
	UseFolder key.Binding
	Convert   key.Binding
	Again     key.Binding
	Exit      key.Binding
	StartOver key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next"),
		),
		Back: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Choose: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "choose"),
		),
		UseFolder: key.NewBinding(
			key.WithKeys("s", "."),
			key.WithHelp("s", "use this folder"),
		),
		Convert: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "convert"),
		),
		Again: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "convert another"),
		),
		Exit: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "exit"),
		),
		StartOver: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "start over"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
	}
}
