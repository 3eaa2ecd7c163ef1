package scraper

import (
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// UserAgents is the rotation pool. The first entry is used when rotation is off.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
}

// Headers builds browser-like request headers.
type Headers struct {
	mu        sync.Mutex
	rotate    bool
	incognito bool
	rnd       *rand.Rand
}

// NewHeaders creates a header provider seeded from the clock.
func NewHeaders(rotate, incognito bool) *Headers {
	return NewHeadersWithRand(rotate, incognito, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewHeadersWithRand creates a header provider with a caller-supplied random source.
func NewHeadersWithRand(rotate, incognito bool, rnd *rand.Rand) *Headers {
	return &Headers{rotate: rotate, incognito: incognito, rnd: rnd}
}

// Set changes the rotation and incognito flags.
func (h *Headers) Set(rotate, incognito bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rotate = rotate
	h.incognito = incognito
}

// Incognito reports whether cache busting is on.
func (h *Headers) Incognito() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.incognito
}

// Build returns a fresh header set. Entries in extra override generated ones.
func (h *Headers) Build(extra map[string]string) http.Header {
	h.mu.Lock()
	ua := UserAgents[0]
	if h.rotate {
		ua = UserAgents[h.rnd.Intn(len(UserAgents))]
	}
	connection := "keep-alive"
	if h.incognito {
		connection = "close"
	}
	h.mu.Unlock()

	hdr := http.Header{}
	hdr.Set("User-Agent", ua)
	hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	// Only encodings the fetcher can decode itself; setting this header turns
	// off net/http's transparent gzip handling.
	hdr.Set("Accept-Encoding", "gzip, deflate")
	hdr.Set("Accept-Language", "en-US,en;q=0.9")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Pragma", "no-cache")
	hdr.Set("Connection", connection)

	for k, v := range extra {
		hdr.Set(k, v)
	}
	return hdr
}

// CacheBust appends a throwaway query parameter in incognito mode.
func (h *Headers) CacheBust(rawURL string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.incognito {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	token := strconv.FormatInt(h.rnd.Int63(), 36)
	if u.RawQuery == "" {
		u.RawQuery = "_=" + token
	} else {
		u.RawQuery += "&_=" + token
	}
	return u.String()
}
