package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	Title      lipgloss.Style
	Department lipgloss.Style
	Muted      lipgloss.Style
	Error      lipgloss.Style
	AnswerBox  lipgloss.Style
	InputBox   lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() *Styles {
	primary := lipgloss.Color("#7C3AED")
	border := lipgloss.Color("#45475A")

	return &Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(primary),
		Department: lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true),
		Muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		AnswerBox:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		InputBox:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1),
	}
}
