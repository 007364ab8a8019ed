// Package theme holds the console palette.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme represents a color theme
type Theme struct {
	Primary   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	// Syntax is the chroma style used for highlighted JSON.
	Syntax string
}

var Default = Theme{
	Primary:   lipgloss.Color("#00ff00"),
	Text:      lipgloss.Color("#ffffff"),
	TextMuted: lipgloss.Color("#808080"),
	Success:   lipgloss.Color("#5fd75f"),
	Error:     lipgloss.Color("#ff5f5f"),
	Warning:   lipgloss.Color("#ffaf00"),
	Syntax:    "monokai",
}

var current = Default

// Current returns the active theme
func Current() Theme {
	return current
}

// SetTheme sets the current theme
func SetTheme(t Theme) {
	current = t
}
