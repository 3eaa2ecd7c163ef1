// Package tui implements the terminal user interface using Bubble Tea.
// It searches AudiobookBay, hands picked postings to the download client
// and shows what the client is working on.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/scraper"
	"github.com/litescript/ls-abb/internal/vpn"
)

// ErrVPNDown is returned for sends while the VPN guard is on and the VPN is
// not connected.
var ErrVPNDown = errors.New("VPN is not connected")

const (
	refreshInterval = 2 * time.Second
	opTimeout       = 30 * time.Second
)

type viewMode int

const (
	viewSearch viewMode = iota
	viewResults
	viewDownloads
)

// VPNChecker reports the VPN state.
type VPNChecker interface {
	Check(ctx context.Context) vpn.Status
}

// Deps are the services the model drives.
type Deps struct {
	Source scraper.Source

	// Client is nil when no download client is configured; ClientErr then
	// says why.
	Client      download.Client
	ClientErr   error
	Download    config.DownloadConfig
	VPN         VPNChecker
	VPNRequired bool
	Pages       int
}

// Model is the main application state
type Model struct {
	deps Deps

	searchInput textinput.Model
	spinner     spinner.Model

	mode     viewMode
	prevMode viewMode
	query    string
	results  []scraper.PostingRecord
	cursor   int
	sent     map[string]bool

	torrents   []download.Status
	dlCursor   int
	isFetching bool

	searching  bool
	sending    bool
	statusMsg  string
	err        error
	vpnStatus  vpn.Status
	vpnChecked bool
	clientUp   bool

	width  int
	height int
}

// Messages
type searchResultMsg struct {
	query   string
	results []scraper.PostingRecord
	err     error
}

type sendResultMsg struct {
	title string
	err   error
}

type torrentListMsg struct {
	torrents []download.Status
	err      error
}

type vpnStatusMsg struct {
	status vpn.Status
}

type tickMsg time.Time

// ThemeChangedMsg tells the model the palette was reloaded.
type ThemeChangedMsg struct{}

// NewModel creates the initial model
func NewModel(d Deps) Model {
	if d.Client == nil && d.ClientErr == nil {
		d.ClientErr = download.ErrNoClient
	}

	ti := textinput.New()
	ti.Placeholder = "Search audiobooks..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = GetStyles().Accent

	return Model{
		deps:        d,
		searchInput: ti,
		spinner:     sp,
		mode:        viewSearch,
		sent:        make(map[string]bool),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.checkVPNStatus(),
		m.fetchTorrents(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.searchInput.Width = max(msg.Width-20, 10)
		return m, nil

	case spinner.TickMsg:
		if !m.searching && !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case searchResultMsg:
		// A newer search replaced this one.
		if msg.query != m.query {
			return m, nil
		}
		m.searching = false
		m.results = msg.results
		m.cursor = 0
		m.err = nil
		switch {
		case len(msg.results) == 0 && msg.err != nil:
			m.err = msg.err
			m.statusMsg = "Search failed"
		case msg.err != nil:
			m.statusMsg = "Showing partial results"
		default:
			m.statusMsg = pluralize(len(msg.results), "result")
		}
		if len(m.results) > 0 {
			m.mode = viewResults
			m.searchInput.Blur()
		}
		return m, nil

	case sendResultMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
			m.statusMsg = "Send failed"
			return m, nil
		}
		m.err = nil
		m.sent[msg.title] = true
		m.statusMsg = "Sent: " + TruncateString(msg.title, 40)
		return m, m.fetchTorrents()

	case torrentListMsg:
		m.isFetching = false
		if msg.err != nil {
			m.clientUp = false
			if m.mode == viewDownloads {
				m.err = msg.err
			}
			return m, nil
		}
		m.clientUp = true
		m.torrents = msg.torrents
		if m.dlCursor >= len(m.torrents) {
			m.dlCursor = max(len(m.torrents)-1, 0)
		}
		return m, nil

	case vpnStatusMsg:
		m.vpnStatus = msg.status
		m.vpnChecked = true
		return m, nil

	case tickMsg:
		if m.mode == viewDownloads && !m.isFetching {
			m.isFetching = true
			return m, tea.Batch(m.fetchTorrents(), tickCmd())
		}
		return m, tickCmd()

	case ThemeChangedMsg:
		m.spinner.Style = GetStyles().Accent
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case viewSearch:
		return m.handleSearchKey(msg)
	case viewResults:
		return m.handleResultsKey(msg)
	case viewDownloads:
		return m.handleDownloadsKey(msg)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		query := strings.ToLower(strings.TrimSpace(m.searchInput.Value()))
		if query == "" || m.searching {
			return m, nil
		}
		m.query = query
		m.searching = true
		m.err = nil
		m.statusMsg = "Searching..."
		return m, tea.Batch(m.spinner.Tick, m.doSearch(query))
	case "esc":
		if len(m.results) > 0 {
			m.mode = viewResults
			m.searchInput.Blur()
		}
		return m, nil
	case "tab":
		return m.openDownloads()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.results)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.results)-1, 0)
	case "enter":
		if m.sending || m.cursor >= len(m.results) {
			return m, nil
		}
		rec := m.results[m.cursor]
		m.sending = true
		m.err = nil
		m.statusMsg = "Sending " + TruncateString(rec.Title, 40) + "..."
		return m, tea.Batch(m.spinner.Tick, m.sendPosting(rec))
	case "r":
		if m.query == "" || m.searching {
			return m, nil
		}
		m.searching = true
		m.statusMsg = "Searching..."
		return m, tea.Batch(m.spinner.Tick, m.doSearch(m.query))
	case "/", "i", "esc":
		m.mode = viewSearch
		m.searchInput.Focus()
		return m, textinput.Blink
	case "tab":
		return m.openDownloads()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleDownloadsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.dlCursor > 0 {
			m.dlCursor--
		}
	case "down", "j":
		if m.dlCursor < len(m.torrents)-1 {
			m.dlCursor++
		}
	case "r":
		m.isFetching = true
		return m, tea.Batch(m.fetchTorrents(), m.checkVPNStatus())
	case "tab", "esc":
		m.mode = m.prevMode
		m.err = nil
		if m.mode == viewSearch {
			m.searchInput.Focus()
			return m, textinput.Blink
		}
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) openDownloads() (tea.Model, tea.Cmd) {
	m.prevMode = m.mode
	m.mode = viewDownloads
	m.err = nil
	m.searchInput.Blur()
	m.isFetching = true
	return m, m.fetchTorrents()
}

func (m Model) doSearch(query string) tea.Cmd {
	source, pages := m.deps.Source, m.deps.Pages
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		results, err := source.Search(ctx, query, pages)
		return searchResultMsg{query: query, results: results, err: err}
	}
}

func (m Model) sendPosting(rec scraper.PostingRecord) tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if d.Client == nil {
			return sendResultMsg{title: rec.Title, err: d.ClientErr}
		}
		if d.VPNRequired && (d.VPN == nil || !d.VPN.Check(ctx).Connected) {
			return sendResultMsg{title: rec.Title, err: ErrVPNDown}
		}

		magnet, err := d.Source.Magnet(ctx, rec.DetailsURL)
		if err != nil {
			return sendResultMsg{title: rec.Title, err: err}
		}
		err = download.Submit(ctx, d.Client, magnet, rec.Title, d.Download)
		return sendResultMsg{title: rec.Title, err: err}
	}
}

func (m Model) fetchTorrents() tea.Cmd {
	client, category, clientErr := m.deps.Client, m.deps.Download.Category, m.deps.ClientErr
	return func() tea.Msg {
		if client == nil {
			return torrentListMsg{err: clientErr}
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		torrents, err := client.Torrents(ctx, category)
		return torrentListMsg{torrents: torrents, err: err}
	}
}

func (m Model) checkVPNStatus() tea.Cmd {
	checker := m.deps.VPN
	if checker == nil {
		return nil
	}
	return func() tea.Msg {
		return vpnStatusMsg{status: checker.Check(context.Background())}
	}
}
