package bubbletea

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the console. Bindings without a
// modifier only apply while a content pane has focus, so they never
// steal keystrokes from the form inputs.
type KeyMap struct {
	// Global
	NextPane    key.Binding
	PrevPane    key.Binding
	ToggleTheme key.Binding
	ForceQuit   key.Binding

	// Forms
	Submit    key.Binding
	Reset     key.Binding
	NextField key.Binding
	PrevField key.Binding
	RevealKey key.Binding

	// Content panes
	Up             key.Binding
	Down           key.Binding
	HalfPageUp     key.Binding
	HalfPageDown   key.Binding
	GotoTop        key.Binding
	GotoBottom     key.Binding
	RequestChanges key.Binding
	ReloadRCA      key.Binding
	CopyRCA        key.Binding
	Quit           key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		PrevPane: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous pane"),
		),
		ToggleTheme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "toggle theme"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reset"),
		),
		NextField: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous field"),
		),
		RevealKey: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "show/hide key"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "half page down"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "go to top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "go to bottom"),
		),
		RequestChanges: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "suggest changes"),
		),
		ReloadRCA: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload RCA"),
		),
		CopyRCA: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy RCA"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}
}
