package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
)

var (
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	alterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F080")) // yellow

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#CCCCCC"))

	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// noticeOutput receives deprecation notices
var noticeOutput io.Writer = os.Stderr

func printWarningDeprecated(fieldName string, info *Deprecation) {
	header := warningStyle.Render("Warning: ") +
		fmt.Sprintf("Field '%s' is deprecated", fieldName)

	var lines []string
	if info != nil {
		lines = deprecationLines(*info, "Deprecated since", "Planned removal date")
	}
	renderNotice(header, lines)
}

func printErrorDeprecated(fieldName string, info Deprecation) {
	header := errorStyle.Render("Error: ") +
		fmt.Sprintf("Field '%s' is already retired", fieldName)
	renderNotice(header, deprecationLines(info, "Deprecated on", "Will be removed on"))
}

func deprecationLines(info Deprecation, sinceLabel, plannedLabel string) []string {
	var lines []string
	if info.Alternative != "" {
		lines = append(lines, fmt.Sprintf("Please use '%s' instead", alterStyle.Render(info.Alternative)))
	}
	removed := time.Now().After(info.RemovalDate)
	if !info.DeprecatedAt.IsZero() && !removed {
		lines = append(lines, infoStyle.Render(
			fmt.Sprintf("%s: %s", sinceLabel, info.DeprecatedAt.Format("2006-01-02"))))
	}
	if !info.RemovalDate.IsZero() {
		lines = append(lines, infoStyle.Render(lo.Ternary(removed,
			fmt.Sprintf("Removed at: %s", info.RemovalDate.Format("2006-01-02")),
			fmt.Sprintf("%s: %s", plannedLabel, info.RemovalDate.Format("2006-01-02")),
		)))
	}
	return filterEmptyStyledStrings(lines)
}

func renderNotice(header string, lines []string) {
	msg := header
	if len(lines) > 0 {
		msg = fmt.Sprintf("%s\n%s", header, lipgloss.JoinVertical(lipgloss.Left, lines...))
	}
	fmt.Fprintln(noticeOutput, containerStyle.Render(msg))
}

func isStyleRenderEffectivelyEmpty(styled string) bool {
	clean := strings.TrimFunc(ansiEscape.ReplaceAllString(styled, ""), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	return clean == ""
}

func filterEmptyStyledStrings(styled []string) []string {
	return lo.Filter(styled, func(str string, _ int) bool {
		return !isStyleRenderEffectivelyEmpty(str)
	})
}
