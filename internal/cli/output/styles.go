package output

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles commands use for text output.
type Styles struct {
	Bold    lipgloss.Style
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// newStyles returns colored styles when enabled, zero styles otherwise.
// A zero lipgloss.Style renders its input without escape codes, so
// markdown and JSON output stay free of ANSI sequences.
func newStyles(enabled bool) Styles {
	if !enabled {
		return Styles{}
	}
	return Styles{
		Bold:    lipgloss.NewStyle().Bold(true),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}
