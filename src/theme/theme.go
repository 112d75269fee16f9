// Package theme holds the terminal styles used by the CLI.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette is a set of terminal colors.
type Palette struct {
	Primary   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
}

// CurrentTheme is the active palette.
var CurrentTheme = Palette{
	Primary:   lipgloss.Color("#7aa2f7"),
	Text:      lipgloss.Color("#c0caf5"),
	TextMuted: lipgloss.Color("#808080"),
	Success:   lipgloss.Color("#9ece6a"),
	Error:     lipgloss.Color("#f7768e"),
	Warning:   lipgloss.Color("#e0af68"),
}

// SetTheme sets the current theme
func SetTheme(p Palette) {
	CurrentTheme = p
}

// Styles derived from CurrentTheme.
func Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Primary)
}

func Text() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Text)
}

func Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.TextMuted)
}

func Success() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Success)
}

func Error() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Error)
}

func Warning() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Warning)
}

// Label renders "key: value" with a muted key.
func Label(key, value string) string {
	return Muted().Render(key+":") + " " + Text().Render(value)
}
