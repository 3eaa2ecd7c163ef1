// Package theme derives the TUI colours from the user's terminal config.
// Alacritty, Kitty and Foot configs are read, and ABB_TUI_* environment
// variables override whatever was found.
package theme

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette holds the color scheme for the TUI
type Palette struct {
	BG       string // background
	FG       string // foreground (primary text)
	Muted    string // secondary info, borders
	Accent   string // progress, highlights
	AccentBg string // selection background
	Error    string // errors and warnings
}

// DefaultPalette returns the fallback theme, warm paper on dark
func DefaultPalette() Palette {
	return Palette{
		BG:       "#101014",
		FG:       "#e8d8b0",
		Muted:    "#74694f",
		Accent:   "#7fb069",
		AccentBg: "#262219",
		Error:    "#e4572e",
	}
}

// Styles holds the lipgloss styles derived from a palette
type Styles struct {
	Header        lipgloss.Style
	Title         lipgloss.Style
	StatusBar     lipgloss.Style
	SearchPrompt  lipgloss.Style
	TableHeader   lipgloss.Style
	TableRow      lipgloss.Style
	TableSelected lipgloss.Style
	Accent        lipgloss.Style
	Muted         lipgloss.Style
	Error         lipgloss.Style
	Good          lipgloss.Style
	Bad           lipgloss.Style
	HelpKey       lipgloss.Style
	Panel         lipgloss.Style
}

// NewStyles creates styles from a palette
func NewStyles(p Palette) Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.FG)).
			Bold(true).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.FG)).
			Bold(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)).
			Padding(0, 1),

		SearchPrompt: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Accent)),

		TableHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color(p.Muted)),

		TableRow: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.FG)),

		TableSelected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.FG)).
			Background(lipgloss.Color(p.AccentBg)).
			Bold(true),

		Accent: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Accent)),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Error)),

		Good: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8bc34a")),

		Bad: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff6b6b")),

		HelpKey: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)),

		Panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Muted)).
			Padding(0, 1),
	}
}

var (
	mu      sync.RWMutex
	palette = DefaultPalette()
	styles  = NewStyles(palette)
	loaded  bool
)

// Current returns the active styles, detecting the theme on first use.
func Current() Styles {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return styles
	}
	mu.RUnlock()

	Refresh()
	mu.RLock()
	defer mu.RUnlock()
	return styles
}

// CurrentPalette returns the active palette.
func CurrentPalette() Palette {
	Current()
	mu.RLock()
	defer mu.RUnlock()
	return palette
}

// Refresh reloads the theme from config files
func Refresh() {
	p := Detect()
	mu.Lock()
	palette = p
	styles = NewStyles(p)
	loaded = true
	mu.Unlock()
}
