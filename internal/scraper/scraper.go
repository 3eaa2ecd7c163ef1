// Package scraper searches AudiobookBay-style forum indexes for audiobook postings.
// It resolves a reachable mirror, walks search result pages, extracts per-post
// metadata from loosely structured HTML and derives magnet links from details pages.
package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultMirrors are the hostnames tried after the configured one, in order.
var DefaultMirrors = []string{
	"audiobookbay.lu",
	"audiobookbay.is",
	"audiobookbay.fi",
	"audiobookbay.li",
	"theaudiobookbay.se",
}

// PlaceholderCover is used when a posting carries no cover image.
const PlaceholderCover = "/static/images/default-cover.jpg"

// PostingRecord is one forum posting as found in search results.
//
// Title and DetailsURL are always set; every other field is independent and
// may be empty when the page did not carry it.
type PostingRecord struct {
	Title           string     `json:"title"`
	DetailsURL      string     `json:"link"`
	CoverURL        string     `json:"cover"`
	Categories      []string   `json:"categories,omitempty"`
	Language        string     `json:"language,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	Uploader        string     `json:"uploader,omitempty"`
	PostedDate      PostedDate `json:"posted"`
	Format          string     `json:"format,omitempty"`
	BitrateKbps     *int       `json:"bitrate_kbps,omitempty"`
	FileSizeBytes   *int64     `json:"file_size_bytes,omitempty"`
	FileSizeDisplay string     `json:"file_size,omitempty"`
}

// Source is what the front ends need from a scraper.
type Source interface {
	// Search returns postings for query across at most maxPages pages.
	// The records are valid even when err is non-nil; err only explains
	// why pagination stopped early.
	Search(ctx context.Context, query string, maxPages int) ([]PostingRecord, error)

	// Magnet builds a magnet URI from a posting's details page.
	Magnet(ctx context.Context, detailsURL string) (string, error)

	// ValidateDetailsURL reports whether a details link points at a known
	// mirror.
	ValidateDetailsURL(rawURL string) bool
}

// Options tune a Scraper. Zero values fall back to the defaults below.
type Options struct {
	Hostname          string
	Mirrors           []string
	PageLimit         int
	Timeout           time.Duration
	Incognito         bool
	RotateUserAgent   bool
	RequestsPerSecond float64
}

const (
	defaultPageLimit = 5
	defaultTimeout   = 10 * time.Second
)

// Scraper implements Source against AudiobookBay mirrors.
type Scraper struct {
	mu       sync.RWMutex
	opts     Options
	headers  *Headers
	fetcher  *Fetcher
	resolver *Resolver
}

// Option customises a Scraper at construction time.
type Option func(*Scraper)

// WithHTTPClient swaps the HTTP client, mostly so tests can inject a transport.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		s.fetcher.client = c
	}
}

// WithHeaders swaps the header provider.
func WithHeaders(h *Headers) Option {
	return func(s *Scraper) {
		s.headers = h
		s.fetcher.headers = h
	}
}

// New creates a scraper for the configured hostname and its mirrors.
func New(opts Options, options ...Option) *Scraper {
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	mirrors := opts.Mirrors
	if len(mirrors) == 0 {
		mirrors = DefaultMirrors
	}

	headers := NewHeaders(opts.RotateUserAgent, opts.Incognito)
	fetcher := NewFetcher(headers, opts.RequestsPerSecond)

	s := &Scraper{
		opts:    opts,
		headers: headers,
		fetcher: fetcher,
	}
	for _, o := range options {
		o(s)
	}
	s.resolver = NewResolver(Candidates(opts.Hostname, mirrors), s.fetcher, opts.Timeout)

	return s
}

// Resolver exposes the mirror state, e.g. for forced re-probing.
func (s *Scraper) Resolver() *Resolver {
	return s.resolver
}

// Tune updates the tunables that are safe to change on a live scraper.
// Hostname and mirror list changes need a new Scraper.
func (s *Scraper) Tune(pageLimit int, timeout time.Duration, incognito, rotate bool) {
	s.mu.Lock()
	if pageLimit > 0 {
		s.opts.PageLimit = pageLimit
	}
	if timeout > 0 {
		s.opts.Timeout = timeout
		s.resolver.setTimeout(timeout)
	}
	s.opts.Incognito = incognito
	s.opts.RotateUserAgent = rotate
	opts := s.opts
	s.mu.Unlock()

	s.headers.Set(rotate, incognito)

	log.WithFields(log.Fields{
		"pageLimit": opts.PageLimit,
		"timeout":   opts.Timeout,
		"incognito": incognito,
		"rotateUA":  rotate,
	}).Info("Scraper settings updated")
}

func (s *Scraper) settings() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Stats describes the scraper configuration for diagnostics.
func (s *Scraper) Stats() map[string]string {
	opts := s.settings()
	active := s.resolver.Current()
	if active == "" {
		active = "unresolved"
	}
	ua := "fixed"
	if opts.RotateUserAgent {
		ua = "rotating"
	}
	return map[string]string{
		"hostname":               opts.Hostname,
		"active_mirror":          active,
		"candidates":             strings.Join(s.resolver.Candidates(), ","),
		"page_limit":             strconv.Itoa(opts.PageLimit),
		"timeout":                opts.Timeout.String(),
		"incognito":              strconv.FormatBool(opts.Incognito),
		"user_agent":             ua,
		"default_trackers_count": strconv.Itoa(len(DefaultTrackers)),
	}
}

// ValidateDetailsURL reports whether rawURL is an http(s) link on one of the
// known mirrors.
func (s *Scraper) ValidateDetailsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return s.resolver.IsCandidate(u.Hostname())
}
