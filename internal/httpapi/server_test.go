package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/scraper"
	"github.com/litescript/ls-abb/internal/vpn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records  []scraper.PostingRecord
	err      error
	magnet   string
	magErr   error
	gotQuery string
}

func (f *fakeSource) Search(_ context.Context, query string, _ int) ([]scraper.PostingRecord, error) {
	f.gotQuery = query
	return f.records, f.err
}

func (f *fakeSource) Magnet(context.Context, string) (string, error) {
	return f.magnet, f.magErr
}

func (f *fakeSource) ValidateDetailsURL(link string) bool {
	return strings.HasPrefix(link, "https://a.test/")
}

type fakeClient struct {
	added    []string
	savePath string
	addErr   error
	torrents []download.Status
	category string
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Add(_ context.Context, magnet, savePath, _ string) error {
	f.added = append(f.added, magnet)
	f.savePath = savePath
	return f.addErr
}

func (f *fakeClient) Torrents(_ context.Context, category string) ([]download.Status, error) {
	f.category = category
	return f.torrents, nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

type fakeMirrors struct {
	active string
	err    error
	forced bool
}

func (f *fakeMirrors) Current() string      { return f.active }
func (f *fakeMirrors) Candidates() []string { return []string{"a.test", "b.test"} }
func (f *fakeMirrors) Active(_ context.Context, force bool) (string, error) {
	f.forced = force
	if f.err != nil {
		return "", f.err
	}
	f.active = "b.test"
	return f.active, nil
}

type fakeVPN struct{ up bool }

func (f fakeVPN) Check(context.Context) vpn.Status { return vpn.Status{Connected: f.up, Country: "Iceland"} }

var dlConfig = config.DownloadConfig{SavePathBase: "/books", Category: "abb"}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestSearch(t *testing.T) {
	src := &fakeSource{records: []scraper.PostingRecord{{Title: "Dune", DetailsURL: "https://a.test/dune/"}}}
	h := New(Deps{Source: src, Mirrors: &fakeMirrors{}}).Handler()

	rec, out := do(t, h, http.MethodGet, "/api/search?q=+Frank+HERBERT+", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "frank herbert", src.gotQuery)
	assert.Equal(t, 1.0, out["count"])
	assert.NotContains(t, out, "warning")

	rec, _ = do(t, h, http.MethodGet, "/api/search?q=", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchFailureIsNotAnError(t *testing.T) {
	src := &fakeSource{err: scraper.ErrNoMirrorReachable}
	h := New(Deps{Source: src, Mirrors: &fakeMirrors{}}).Handler()

	rec, out := do(t, h, http.MethodGet, "/api/search?q=x", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, out["count"])
	assert.Equal(t, []any{}, out["results"])
	assert.Contains(t, out["warning"], "mirror")
}

func TestSend(t *testing.T) {
	client := &fakeClient{}
	src := &fakeSource{magnet: "magnet:?xt=urn:btih:abc"}
	h := New(Deps{Source: src, Mirrors: &fakeMirrors{}, Client: client, Download: dlConfig}).Handler()

	rec, out := do(t, h, http.MethodPost, "/api/send", `{"link":"https://a.test/dune/","title":"Dune: Book 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, out["message"], "Download added")
	assert.Equal(t, []string{"magnet:?xt=urn:btih:abc"}, client.added)
	assert.Equal(t, "/books/Dune Book 1", client.savePath)
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name   string
		deps   Deps
		body   string
		status int
		msg    string
	}{
		{
			name:   "bad json",
			deps:   Deps{Source: &fakeSource{}, Client: &fakeClient{}},
			body:   `{`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing link",
			deps:   Deps{Source: &fakeSource{}, Client: &fakeClient{}},
			body:   `{"title":"x"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "magnet failure",
			deps:   Deps{Source: &fakeSource{magErr: scraper.ErrInfoHashNotFound}, Client: &fakeClient{}, Download: dlConfig},
			body:   `{"link":"https://a.test/x/"}`,
			status: http.StatusBadGateway,
			msg:    "Failed to extract magnet link from page",
		},
		{
			name:   "client failure",
			deps:   Deps{Source: &fakeSource{magnet: "m"}, Client: &fakeClient{addErr: errors.New("refused")}, Download: dlConfig},
			body:   `{"link":"https://a.test/x/"}`,
			status: http.StatusInternalServerError,
			msg:    "Download client error: refused",
		},
		{
			name:   "no client",
			deps:   Deps{Source: &fakeSource{magnet: "m"}, Download: dlConfig},
			body:   `{"link":"https://a.test/x/"}`,
			status: http.StatusInternalServerError,
			msg:    "Download client error: no download client configured",
		},
		{
			name:   "off mirror link",
			deps:   Deps{Source: &fakeSource{magnet: "m"}, Client: &fakeClient{}, Download: dlConfig},
			body:   `{"link":"https://evil.test/x/"}`,
			status: http.StatusBadRequest,
			msg:    "link is not on a known AudiobookBay mirror",
		},
		{
			name:   "vpn required without check",
			deps:   Deps{Source: &fakeSource{magnet: "m"}, Client: &fakeClient{}, Download: dlConfig, VPNRequired: true},
			body:   `{"link":"https://a.test/x/"}`,
			status: http.StatusForbidden,
		},
		{
			name:   "vpn down",
			deps:   Deps{Source: &fakeSource{magnet: "m"}, Client: &fakeClient{}, Download: dlConfig, VPN: fakeVPN{}, VPNRequired: true},
			body:   `{"link":"https://a.test/x/"}`,
			status: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.Mirrors = &fakeMirrors{}
			rec, out := do(t, New(tt.deps).Handler(), http.MethodPost, "/api/send", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if c, ok := tt.deps.Client.(*fakeClient); ok && tt.status != http.StatusInternalServerError {
				assert.Empty(t, c.added)
			}
			assert.NotEmpty(t, out["error"])
			if tt.msg != "" {
				assert.Equal(t, tt.msg, out["error"])
			}
		})
	}
}

func TestSendWithVPNUp(t *testing.T) {
	client := &fakeClient{}
	h := New(Deps{
		Source:      &fakeSource{magnet: "m"},
		Mirrors:     &fakeMirrors{},
		Client:      client,
		Download:    dlConfig,
		VPN:         fakeVPN{up: true},
		VPNRequired: true,
	}).Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/send", `{"link":"https://a.test/x/","title":"t"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, client.added, 1)
}

func TestStatus(t *testing.T) {
	client := &fakeClient{torrents: []download.Status{{Name: "Dune", Progress: 42.5, State: "downloading", Size: "1.0 GiB"}}}
	h := New(Deps{Source: &fakeSource{}, Mirrors: &fakeMirrors{}, Client: client, Download: dlConfig}).Handler()

	rec, out := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abb", client.category)
	assert.Equal(t, "fake", out["client"])
	torrents := out["torrents"].([]any)
	require.Len(t, torrents, 1)
	assert.Equal(t, "Dune", torrents[0].(map[string]any)["name"])

	rec, _ = do(t, New(Deps{Source: &fakeSource{}, Mirrors: &fakeMirrors{}}).Handler(), http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSetDownloadSwapsClient(t *testing.T) {
	s := New(Deps{Source: &fakeSource{}, Mirrors: &fakeMirrors{}})
	h := s.Handler()

	rec, _ := do(t, h, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	s.SetDownload(dlConfig, &fakeClient{}, nil)
	rec, _ = do(t, h, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMirrorEndpoints(t *testing.T) {
	m := &fakeMirrors{active: "a.test"}
	stats := func() map[string]string { return map[string]string{"page_limit": "5"} }
	h := New(Deps{Source: &fakeSource{}, Mirrors: m, Stats: stats}).Handler()

	rec, out := do(t, h, http.MethodGet, "/api/mirror", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a.test", out["active"])
	assert.Equal(t, []any{"a.test", "b.test"}, out["candidates"])
	assert.Equal(t, map[string]any{"page_limit": "5"}, out["stats"])

	rec, out = do(t, h, http.MethodPost, "/api/mirror/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, m.forced)
	assert.Equal(t, "b.test", out["active"])

	m.err = scraper.ErrNoMirrorReachable
	rec, _ = do(t, h, http.MethodPost, "/api/mirror/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/mirror/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestVPNAndHealth(t *testing.T) {
	h := New(Deps{Source: &fakeSource{}, Mirrors: &fakeMirrors{}, VPN: fakeVPN{up: true}}).Handler()
	rec, out := do(t, h, http.MethodGet, "/api/vpn", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["connected"])
	assert.Equal(t, "Iceland", out["country"])

	rec, _ = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTorznabMounted(t *testing.T) {
	var gotPath string
	tz := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	})
	h := New(Deps{Source: &fakeSource{}, Mirrors: &fakeMirrors{}, Torznab: tz}).Handler()

	do(t, h, http.MethodGet, "/torznab/api?t=caps", "")
	assert.Equal(t, "/api", gotPath)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
