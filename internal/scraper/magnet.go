package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTrackers are used when a details page lists no trackers.
var DefaultTrackers = []string{
	"udp://tracker.openbittorrent.com:80",
	"udp://opentor.org:2710",
	"udp://tracker.ccc.de:80",
	"udp://tracker.blackunicorn.xyz:6969",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://tracker.leechers-paradise.org:6969",
}

// MagnetComponents are the parts of a magnet URI.
type MagnetComponents struct {
	InfoHash    string
	DisplayName string
	Trackers    []string
}

// BuildMagnet renders the components as magnet:?xt=urn:btih:...&dn=...&tr=...
func BuildMagnet(c MagnetComponents) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(c.InfoHash)
	b.WriteString("&dn=")
	b.WriteString(quote(c.DisplayName))
	for _, tr := range c.Trackers {
		b.WriteString("&tr=")
		b.WriteString(quote(tr))
	}
	return b.String()
}

// quote percent-encodes s, leaving '/' as is and spaces as %20.
func quote(s string) string {
	q := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return strings.ReplaceAll(q, "%2F", "/")
}

// DisplayName derives a readable name from the last path segment of a
// details URL: "/abs/some-book-title/" becomes "Some Book Title".
func DisplayName(detailsURL string) string {
	path := detailsURL
	if u, err := url.Parse(detailsURL); err == nil {
		path = u.Path
	}

	var last string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			last = seg
		}
	}
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}

	// A Caser keeps state, so each call gets its own.
	return cases.Title(language.Und).String(strings.ReplaceAll(last, "-", " "))
}

// Magnet fetches a posting's details page and builds its magnet URI from the
// info hash and tracker rows. Links on a known mirror are fetched through the
// mirror resolver so a dead mirror in the link doesn't matter.
func (s *Scraper) Magnet(ctx context.Context, detailsURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(detailsURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDetailsURL, detailsURL)
	}

	page, err := s.detailsPage(ctx, u)
	if err != nil {
		log.WithFields(log.Fields{
			"url": detailsURL,
			"err": err,
		}).Warn("Could not fetch details page")
		return "", fmt.Errorf("%w: %v", ErrDetailsPageUnreachable, err)
	}

	doc, err := goquery.NewDocumentFromReader(page.Reader())
	if err != nil {
		return "", fmt.Errorf("could not load details page into goquery: %w", err)
	}

	hash := infoHash(doc)
	if hash == "" {
		return "", fmt.Errorf("%w: %s", ErrInfoHashNotFound, detailsURL)
	}

	trackers := pageTrackers(doc)
	if len(trackers) == 0 {
		log.WithField("url", detailsURL).Debug("No trackers on page, using defaults")
		trackers = DefaultTrackers
	}

	magnet := BuildMagnet(MagnetComponents{
		InfoHash:    hash,
		DisplayName: DisplayName(detailsURL),
		Trackers:    trackers,
	})
	log.WithField("url", detailsURL).Info("Built magnet link")

	return magnet, nil
}

func (s *Scraper) detailsPage(ctx context.Context, u *url.URL) (*Page, error) {
	if !s.resolver.IsCandidate(u.Hostname()) {
		page, err := s.fetcher.Get(ctx, u.String(), s.resolver.requestTimeout())
		if err != nil {
			return nil, err
		}
		if !page.OK() {
			return nil, &StatusError{URL: u.String(), Code: page.StatusCode}
		}
		return page, nil
	}

	return WithMirror(ctx, s.resolver, func(ctx context.Context, host string) (*Page, error) {
		rawURL := "https://" + host + u.RequestURI()
		page, err := s.fetcher.Get(ctx, rawURL, s.resolver.requestTimeout())
		if err != nil {
			return nil, err
		}
		if !page.OK() {
			return nil, &StatusError{URL: rawURL, Code: page.StatusCode}
		}
		return page, nil
	})
}

// leafCells returns the td elements that don't wrap other cells.
func leafCells(doc *goquery.Document) *goquery.Selection {
	return doc.Find("td").FilterFunction(func(_ int, td *goquery.Selection) bool {
		return td.Find("td").Length() == 0
	})
}

// infoHash reads the cell following the "Info Hash" label cell.
func infoHash(doc *goquery.Document) string {
	hash := ""
	leafCells(doc).EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(td.Text()), "info hash") {
			return true
		}
		hash = strings.TrimSpace(td.NextAllFiltered("td").First().Text())
		return false
	})
	return hash
}

func pageTrackers(doc *goquery.Document) []string {
	var trackers []string
	leafCells(doc).Each(func(_ int, td *goquery.Selection) {
		t := strings.TrimSpace(td.Text())
		l := strings.ToLower(t)
		if strings.HasPrefix(l, "udp://") || strings.HasPrefix(l, "http://") {
			trackers = append(trackers, t)
		}
	})
	return trackers
}
