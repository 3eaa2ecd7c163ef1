package scraper

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailsPage = `<html><body><div class="postContent"><table class="torrent_info">
<tr><td>Tracker:</td><td>udp://tracker.example.org:1337/announce</td></tr>
<tr><td>Tracker:</td><td>http://tracker.example.net/announce</td></tr>
<tr><td>Protocol:</td><td>udp</td></tr>
<tr><td>Info Hash:</td><td> ABCDEF0123456789ABCDEF0123456789ABCDEF01 </td></tr>
</table></div></body></html>`

const detailsPageNoTrackers = `<table><tr><td>Info Hash:</td><td>0123456789abcdef0123456789abcdef01234567</td></tr></table>`

func TestBuildMagnet(t *testing.T) {
	got := BuildMagnet(MagnetComponents{
		InfoHash:    "ABC",
		DisplayName: "Book One",
		Trackers:    []string{"udp://t.test:80", "http://t2.test/announce?x=1"},
	})
	assert.Equal(t,
		"magnet:?xt=urn:btih:ABC&dn=Book%20One&tr=udp%3A//t.test%3A80&tr=http%3A//t2.test/announce%3Fx%3D1",
		got)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://primary.test/abs/the-way-of-kings/", want: "The Way Of Kings"},
		{url: "https://primary.test/abs/dune-frank-herbert", want: "Dune Frank Herbert"},
		{url: "https://primary.test/abs/book-one/?ref=x", want: "Book One"},
		{url: "https://primary.test/", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.url))
		})
	}
}

func TestMagnet(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"primary.test": alive(map[string]string{
			"/abs/book-one/":    detailsPage,
			"/abs/no-trackers/": detailsPageNoTrackers,
			"/abs/no-hash/":     `<table><tr><td>Tracker:</td><td>udp://x.test:1</td></tr></table>`,
		}),
	})
	s := newTestScraper(net)

	magnet, err := s.Magnet(context.Background(), "https://primary.test/abs/book-one/")
	require.NoError(t, err)
	assert.Equal(t,
		"magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&dn=Book%20One"+
			"&tr=udp%3A//tracker.example.org%3A1337/announce&tr=http%3A//tracker.example.net/announce",
		magnet)

	magnet, err = s.Magnet(context.Background(), "https://primary.test/abs/no-trackers/")
	require.NoError(t, err)
	assert.Contains(t, magnet, "dn=No%20Trackers")
	u, err := url.Parse(magnet)
	require.NoError(t, err)
	assert.Equal(t, "urn:btih:0123456789abcdef0123456789abcdef01234567", u.Query().Get("xt"))
	require.Len(t, DefaultTrackers, 6)
	assert.Equal(t, DefaultTrackers, u.Query()["tr"])

	_, err = s.Magnet(context.Background(), "https://primary.test/abs/no-hash/")
	assert.ErrorIs(t, err, ErrInfoHashNotFound)

	_, err = s.Magnet(context.Background(), "https://primary.test/abs/missing/")
	assert.ErrorIs(t, err, ErrDetailsPageUnreachable)
}

func TestMagnetUsesLiveMirror(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"mirror-b.test": alive(map[string]string{"/abs/book-one/": detailsPage}),
	})
	s := newTestScraper(net)

	magnet, err := s.Magnet(context.Background(), "https://primary.test/abs/book-one/")
	require.NoError(t, err)
	assert.Contains(t, magnet, "urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	assert.Equal(t, 1, net.count("mirror-b.test/abs/book-one/"))
}

func TestMagnetForeignHost(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"elsewhere.test": func(r *http.Request) (int, string, error) {
			return http.StatusOK, detailsPage, nil
		},
	})
	s := newTestScraper(net)

	_, err := s.Magnet(context.Background(), "http://elsewhere.test/abs/book-one/")
	require.NoError(t, err)
	assert.Zero(t, net.count("elsewhere.test/"))
}

func TestMagnetInvalidURL(t *testing.T) {
	s := newTestScraper(newFakeNet(nil))

	for _, u := range []string{"", "not a url", "ftp://primary.test/x", "/abs/relative/"} {
		_, err := s.Magnet(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidDetailsURL, u)
	}

	_, err := s.Magnet(context.Background(), "https://primary.test/abs/x/")
	assert.ErrorIs(t, err, ErrDetailsPageUnreachable)
}
