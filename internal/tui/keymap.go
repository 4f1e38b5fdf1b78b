package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the documentation session UI.
// Bindings are matched per phase in Update; a binding that does not
// apply to the current phase is ignored.
type KeyMap struct {
	Record      key.Binding
	Stop        key.Binding
	Cancel      key.Binding
	Save        key.Binding
	Edit        key.Binding
	SaveEdit    key.Binding
	DiscardEdit key.Binding
	Transcript  key.Binding
	RecordAgain key.Binding
	Retry       key.Binding
	Quit        key.Binding
	ForceQuit   key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Record: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "start recording"),
		),
		Stop: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "stop recording"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "discard recording"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save documentation"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit note"),
		),
		SaveEdit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save edits"),
		),
		DiscardEdit: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "discard edits"),
		),
		Transcript: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle transcript"),
		),
		RecordAgain: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new recording"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}
