package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/theme"
	"github.com/litescript/ls-abb/internal/tui"
	log "github.com/sirupsen/logrus"
)

func (a *app) tui() error {
	// Log lines would tear the alt screen.
	log.SetOutput(io.Discard)

	client, clientErr := download.New(a.cfg.Download)

	deps := tui.Deps{
		Source:      a.scraper,
		Client:      client,
		ClientErr:   clientErr,
		Download:    a.cfg.Download,
		VPNRequired: a.cfg.VPN.Required,
		Pages:       a.cfg.Site.PageLimit,
	}
	if c := a.vpnChecker(); c != nil {
		deps.VPN = c
	}

	p := tea.NewProgram(tui.NewModel(deps), tea.WithAltScreen())

	if w, err := theme.NewWatcher(func() { p.Send(tui.ThemeChangedMsg{}) }); err == nil {
		defer w.Stop()
	}

	_, err := p.Run()
	return err
}
