package log

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
)

var levelStyles = []struct {
	level Level
	width int
	style lipgloss.Style
}{
	{DebugLevel, 5, lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))},
	{InfoLevel, 5, lipgloss.NewStyle().Foreground(lipgloss.Color("#5F87FF"))},
	{WarnLevel, 5, lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))},
	{ErrorLevel, 5, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))},
	{FatalLevel, 5, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000")).
		Background(lipgloss.Color("#000000")).
		Bold(true)},
	{NoticeLevel, 6, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5F87")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(true)},
}

// newStyles pads every level label to a fixed width
func newStyles() *Styles {
	styles := charmlog.DefaultStyles()
	for _, ls := range levelStyles {
		label := strings.ToUpper(LevelString(ls.level))
		if len(label) < ls.width {
			label += strings.Repeat(" ", ls.width-len(label))
		}
		styles.Levels[ls.level] = ls.style.SetString(label)
	}
	return styles
}

// Highlight makes text stand out in terminal output
func Highlight(text string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F0F080")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(true).
		Render(" " + text + " ")
}
