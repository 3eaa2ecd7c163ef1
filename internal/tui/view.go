package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/litescript/ls-abb/internal/scraper"
)

// Column widths shared by header and rows.
const (
	formatWidth = 6
	sizeWidth   = 10
	postedWidth = 11
	stateWidth  = 12
	barWidth    = 12
	pctWidth    = 7
)

// View renders the UI
func (m Model) View() string {
	styles := GetStyles()

	var b strings.Builder
	b.WriteString(styles.Header.Render("AudiobookBay"))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	contentHeight := max(m.height-8, 5)

	switch m.mode {
	case viewDownloads:
		b.WriteString(m.renderDownloads(contentHeight))
	default:
		b.WriteString(styles.SearchPrompt.Render("Search: "))
		b.WriteString(m.searchInput.View())
		b.WriteString("\n\n")
		switch {
		case m.searching:
			b.WriteString(m.spinner.View() + " Searching AudiobookBay for " + styles.Title.Render(m.query) + "...")
		case m.err != nil && len(m.results) == 0:
			b.WriteString(styles.Error.Render("Error: " + m.err.Error()))
		default:
			b.WriteString(m.renderResults(contentHeight - 2))
		}
	}

	if m.err != nil && (len(m.results) > 0 || m.mode == viewDownloads) {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render("Error: " + m.err.Error()))
	}

	return b.String()
}

func (m Model) nameWidth(fixed int) int {
	width := m.width
	if width == 0 {
		width = 100
	}
	return max(width-fixed-2, 20)
}

func (m Model) renderResults(height int) string {
	styles := GetStyles()

	if len(m.results) == 0 {
		if m.query == "" {
			return styles.Muted.Render("Type a title or author and press enter")
		}
		return styles.Muted.Render("No results")
	}

	nameWidth := m.nameWidth(formatWidth + sizeWidth + postedWidth + 3 + 2)

	header := "  " + strings.Join([]string{
		PadRight("TITLE", nameWidth),
		PadRight("FORMAT", formatWidth),
		PadLeft("SIZE", sizeWidth),
		PadLeft("POSTED", postedWidth),
	}, " ")
	b := strings.Builder{}
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	start, end := window(m.cursor, len(m.results), max(height-3, 1))
	for i := start; i < end; i++ {
		b.WriteString(m.renderResultRow(i, m.results[i], nameWidth))
		b.WriteString("\n")
	}

	if m.cursor < len(m.results) {
		b.WriteString(m.renderDetail(m.results[m.cursor]))
	}
	return b.String()
}

func (m Model) renderResultRow(i int, rec scraper.PostingRecord, nameWidth int) string {
	styles := GetStyles()

	size := rec.FileSizeDisplay
	if size == "" {
		size = "-"
	}
	row := strings.Join([]string{
		PadRight(rec.Title, nameWidth),
		PadRight(rec.Format, formatWidth),
		PadLeft(size, sizeWidth),
		PadLeft(rec.PostedDate.String(), postedWidth),
	}, " ")

	marker := "  "
	if m.sent[rec.Title] {
		marker = styles.Good.Render("✓ ")
	}
	if i == m.cursor {
		return marker + styles.TableSelected.Render(row)
	}
	return marker + styles.TableRow.Render(row)
}

// renderDetail is the one-line summary under the list for the selected posting.
func (m Model) renderDetail(rec scraper.PostingRecord) string {
	styles := GetStyles()

	var parts []string
	if rec.BitrateKbps != nil {
		parts = append(parts, fmt.Sprintf("%d Kbps", *rec.BitrateKbps))
	}
	if rec.Language != "" {
		parts = append(parts, rec.Language)
	}
	if len(rec.Categories) > 0 {
		parts = append(parts, strings.Join(rec.Categories, ", "))
	}
	if rec.Uploader != "" {
		parts = append(parts, "by "+rec.Uploader)
	}
	parts = append(parts, rec.DetailsURL)

	return "\n" + styles.Muted.Render(TruncateString(strings.Join(parts, " · "), m.nameWidth(0)))
}

func (m Model) renderDownloads(height int) string {
	styles := GetStyles()

	if len(m.torrents) == 0 {
		if !m.clientUp {
			return styles.Muted.Render("Download client unavailable")
		}
		return styles.Muted.Render("Nothing in category " + m.deps.Download.Category)
	}

	nameWidth := m.nameWidth(barWidth + pctWidth + stateWidth + sizeWidth + 4 + 2)

	header := "  " + strings.Join([]string{
		PadRight("NAME", nameWidth),
		PadRight("PROGRESS", barWidth),
		PadLeft("DONE", pctWidth),
		PadRight("STATE", stateWidth),
		PadLeft("SIZE", sizeWidth),
	}, " ")
	var b strings.Builder
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	start, end := window(m.dlCursor, len(m.torrents), max(height-3, 1))
	for i := start; i < end; i++ {
		t := m.torrents[i]
		row := strings.Join([]string{
			styleFor(i == m.dlCursor).Render(PadRight(t.Name, nameWidth)),
			ProgressBar(t.Progress, barWidth),
			styleFor(i == m.dlCursor).Render(PadLeft(fmt.Sprintf("%.1f%%", t.Progress), pctWidth)),
			styleFor(i == m.dlCursor).Render(PadRight(t.State, stateWidth)),
			styleFor(i == m.dlCursor).Render(PadLeft(t.Size, sizeWidth)),
		}, " ")
		if i == m.dlCursor {
			b.WriteString(styles.Accent.Render("▸ ") + row)
		} else {
			b.WriteString("  " + row)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func styleFor(selected bool) lipgloss.Style {
	if selected {
		return GetStyles().TableSelected
	}
	return GetStyles().TableRow
}

// window returns the visible [start, end) range that keeps cursor on screen.
func window(cursor, total, rows int) (int, int) {
	start := 0
	if cursor >= rows {
		start = cursor - rows + 1
	}
	return start, min(start+rows, total)
}

func (m Model) renderStatusBar() string {
	styles := GetStyles()

	var vpnStr string
	switch {
	case !m.vpnChecked || m.deps.VPN == nil:
		vpnStr = styles.Muted.Render("VPN: -")
	case m.vpnStatus.Connected:
		vpnStr = styles.Good.Render(m.vpnStatus.StatusString())
	default:
		vpnStr = styles.Bad.Render(m.vpnStatus.StatusString())
	}

	clientName := "client"
	if m.deps.Client != nil {
		clientName = m.deps.Client.Name()
	}
	var clientStr string
	if m.clientUp {
		clientStr = styles.Good.Render("● " + clientName)
	} else {
		clientStr = styles.Bad.Render("○ " + clientName)
	}

	var help string
	switch m.mode {
	case viewSearch:
		help = "[enter]Search [esc]Results [tab]Downloads [ctrl+c]Quit"
	case viewResults:
		help = "[enter]Send [/]Search [r]Refresh [tab]Downloads [q]Quit"
	case viewDownloads:
		help = "[r]Refresh [tab/esc]Back [q]Quit"
	}

	left := m.statusMsg
	if m.sending {
		left = m.spinner.View() + " " + left
	}
	right := clientStr + "  " + vpnStr

	width := m.width
	if width == 0 {
		width = 100
	}
	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-4, 1)
	line1 := styles.StatusBar.Render(left + strings.Repeat(" ", padding) + right)

	helpStr := styles.HelpKey.Render(help)
	line2 := strings.Repeat(" ", max(width-lipgloss.Width(helpStr)-2, 0)) + helpStr

	return line1 + "\n" + line2
}
