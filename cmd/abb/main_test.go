package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRecords(t *testing.T) {
	kbps := 64
	var buf bytes.Buffer
	renderRecords(&buf, []scraper.PostingRecord{{
		Title:           "Dune",
		DetailsURL:      "https://a.test/dune/",
		Format:          "M4B",
		BitrateKbps:     &kbps,
		FileSizeDisplay: "1.5 GB",
	}})

	out := buf.String()
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "64")
	assert.Contains(t, out, "https://a.test/dune/")

	buf.Reset()
	renderRecords(&buf, nil)
	assert.Equal(t, "No results.\n", buf.String())
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, []download.Status{{Name: "Dune", Progress: 12.5, State: "downloading", Size: "1.0 GiB"}})
	assert.Contains(t, buf.String(), "12.50%")
	assert.Contains(t, buf.String(), "downloading")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runVersion(context.Background(), &buf, nil))
	assert.Contains(t, buf.String(), "abb v")
}

func TestNeedsRestart(t *testing.T) {
	base := config.Default()
	assert.False(t, needsRestart(base, base))

	tuned := base
	tuned.Site.PageLimit = 9
	tuned.Torznab.APIKey = "other"
	assert.False(t, needsRestart(base, tuned))

	moved := base
	moved.Site.Hostname = "audiobookbay.is"
	assert.True(t, needsRestart(base, moved))

	mirrors := base
	mirrors.Site.Mirrors = []string{"x.test"}
	assert.True(t, needsRestart(base, mirrors))
}

func TestRequireVPN(t *testing.T) {
	a := &app{cfg: config.Default()}
	assert.NoError(t, a.requireVPN(context.Background()))

	a.cfg.VPN.Required = true
	assert.ErrorContains(t, a.requireVPN(context.Background()), "status_script")
}

func TestSendAndSearchArgs(t *testing.T) {
	a := &app{cfg: config.Default(), scraper: scraper.New(scraper.Options{})}
	assert.Error(t, a.search(context.Background(), nil))
	assert.Error(t, a.magnet(context.Background(), nil))
	assert.Error(t, a.send(context.Background(), nil))
	assert.ErrorContains(t, a.send(context.Background(), []string{"https://evil.test/abss/x/", "X"}), "known AudiobookBay mirror")
}
