// Package tui provides an interactive terminal client for asking policy
// questions.
package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Ask submits the question in the input.
	Ask key.Binding

	// NextDepartment cycles the department filter forwards.
	NextDepartment key.Binding

	// PrevDepartment cycles the department filter backwards.
	PrevDepartment key.Binding

	// ScrollUp and ScrollDown move the answer viewport.
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
		Ask: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		NextDepartment: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next department"),
		),
		PrevDepartment: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous department"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "pgup"),
			key.WithHelp("↑/pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "pgdown"),
			key.WithHelp("↓/pgdown", "scroll down"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Ask, k.NextDepartment, k.ScrollDown, k.Quit}
}
