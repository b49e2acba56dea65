package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the monitor's bindings, grouped the way the help screen
// shows them.
type KeyMap struct {
	// Browsing the attempt list and the detail view
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Open     key.Binding
	Back     key.Binding

	// Narrowing the list
	Search      key.Binding
	CycleReason key.Binding
	CycleKind   key.Binding
	Refresh     key.Binding

	// Clipboard
	CopyID   key.Binding
	CopyJSON key.Binding
	CopyYAML key.Binding

	Quit key.Binding
	Help key.Binding
}

// helpSection is one titled block of the help screen.
type helpSection struct {
	title    string
	bindings []key.Binding
}

func (k KeyMap) sections() []helpSection {
	return []helpSection{
		{"Browse attempts", []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom, k.Open}},
		{"Filter", []key.Binding{k.CycleReason, k.CycleKind, k.Search, k.Refresh}},
		{"Copy to clipboard", []key.Binding{k.CopyID, k.CopyJSON, k.CopyYAML}},
		{"General", []key.Binding{k.Help, k.Back, k.Quit}},
	}
}

// ShortHelp lists the bindings needed to get around the help screen.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Back, k.Quit}
}

// FullHelp returns one column per help section.
func (k KeyMap) FullHelp() [][]key.Binding {
	var cols [][]key.Binding
	for _, s := range k.sections() {
		cols = append(cols, s.bindings)
	}
	return cols
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous attempt"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next attempt"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "newest attempt"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "oldest attempt"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "attempt and campaign details"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search campaign id and detail"),
		),
		CycleReason: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "cycle outcome filter"),
		),
		CycleKind: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "cycle message/tooltip filter"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload history now"),
		),
		CopyID: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "campaign id"),
		),
		CopyJSON: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "visible attempts as JSON"),
		),
		CopyYAML: key.NewBinding(
			key.WithKeys("alt+c"),
			key.WithHelp("alt+c", "visible attempts as YAML"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}
