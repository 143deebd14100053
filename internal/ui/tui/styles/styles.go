package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Text styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	Info = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#DEDEDE"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5F87")).
		Bold(true)

	FilterStatus = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC")).
			Padding(0, 2)

	// State badge colours, keyed by playback state name
	stateColours = map[string]lipgloss.Color{
		"playing":              lipgloss.Color("#43BF6D"),
		"paused":               lipgloss.Color("#F2C94C"),
		"starting":             lipgloss.Color("#7D56F4"),
		"manual-play-required": lipgloss.Color("#F2994A"),
		"unavailable":          lipgloss.Color("#FF5F87"),
		"ended":                lipgloss.Color("#56CCF2"),
	}
)

// StateBadge renders a playback state as a coloured badge
func StateBadge(state string) string {
	colour, ok := stateColours[state]
	if !ok {
		colour = lipgloss.Color("#555555")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#1A1A1A")).
		Background(colour).
		Padding(0, 1).
		Render(state)
}

// Layout helpers
func Header(width int, title string) string {
	return Title.
		Width(width).
		Align(lipgloss.Center).
		Render(title)
}

func ContentBox(width int, content string, padding int) string {
	return lipgloss.NewStyle().
		Width(width).
		Padding(padding).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#555555")).
		Render(content)
}

func CenteredText(width int, text string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(text)
}
