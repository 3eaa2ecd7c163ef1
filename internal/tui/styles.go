package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/litescript/ls-abb/internal/theme"
)

// GetStyles returns current themed styles
func GetStyles() theme.Styles {
	return theme.Current()
}

// ProgressBar renders a download progress bar for a percentage.
func ProgressBar(percent float64, width int) string {
	styles := GetStyles()

	filled := int(percent * float64(width) / 100)
	filled = min(max(filled, 0), width)

	style := styles.Accent
	if percent >= 100 {
		style = styles.Good
	}
	return style.Render(strings.Repeat("█", filled)) + styles.Muted.Render(strings.Repeat("░", width-filled))
}

// TruncateString cuts s to max display cells, ending in "..." when cut.
func TruncateString(s string, max int) string {
	if lipgloss.Width(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:min(max, len(runes))])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > max {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

// PadRight pads or cuts s to width cells.
func PadRight(s string, width int) string {
	s = TruncateString(s, width)
	return s + strings.Repeat(" ", max(width-lipgloss.Width(s), 0))
}

// PadLeft pads s on the left to width cells.
func PadLeft(s string, width int) string {
	s = TruncateString(s, width)
	return strings.Repeat(" ", max(width-lipgloss.Width(s), 0)) + s
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
