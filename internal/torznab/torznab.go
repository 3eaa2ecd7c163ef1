// Package torznab serves AudiobookBay search results through a
// Torznab-compatible API so library managers such as LazyLibrarian or
// Readarr can use it as an indexer.
package torznab

import (
	"encoding/xml"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/scraper"
	log "github.com/sirupsen/logrus"
)

const (
	maxLimit     = 100
	defaultLimit = 20
)

// Handler serves /api, /download and an info page. Mount it under a prefix
// with http.StripPrefix.
type Handler struct {
	source scraper.Source

	mu  sync.RWMutex
	cfg config.TorznabConfig

	// now is swapped in tests.
	now func() time.Time
}

// New creates a Torznab handler backed by source.
func New(source scraper.Source, cfg config.TorznabConfig) *Handler {
	return &Handler{
		source: source,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Update swaps the endpoint settings, e.g. after a config reload.
func (h *Handler) Update(cfg config.TorznabConfig) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

func (h *Handler) settings() config.TorznabConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// ServeHTTP routes on the path left after the mount prefix is stripped.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.Trim(r.URL.Path, "/") {
	case "api":
		h.api(w, r)
	case "download":
		h.download(w, r)
	case "":
		h.info(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) api(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fn := q.Get("t")
	cfg := h.settings()

	if fn == "caps" {
		writeXML(w, http.StatusOK, caps(cfg))
		return
	}
	if q.Get("apikey") != cfg.APIKey {
		writeError(w, CodeBadAPIKey, "Invalid API key")
		return
	}

	switch fn {
	case "search", "book":
		h.search(w, r, cfg)
	default:
		writeError(w, CodeUnknownFunc, "Unknown or unsupported function")
	}
}

func caps(cfg config.TorznabConfig) capsDoc {
	return capsDoc{
		Server: capsServer{
			Version:   "1.0",
			Title:     cfg.Title,
			Strapline: cfg.Description,
		},
		Limits: capsLimits{Max: maxLimit, Default: defaultLimit},
		Searching: capsSearches{
			Search:     capsSearch{Available: "yes", SupportedParams: "q"},
			BookSearch: capsSearch{Available: "yes", SupportedParams: "q,title,author"},
		},
		Categories: []capsCat{{ID: AudiobookCategory, Name: "Audiobooks"}},
	}
}

// searchQuery builds the query text from q, or from title and author for
// book searches.
func searchQuery(v url.Values) string {
	if q := strings.TrimSpace(v.Get("q")); q != "" {
		return q
	}
	parts := []string{strings.TrimSpace(v.Get("title")), strings.TrimSpace(v.Get("author"))}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func parseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, cfg config.TorznabConfig) {
	q := r.URL.Query()
	query := searchQuery(q)
	if query == "" {
		writeError(w, CodeMissingParam, "Missing query parameter")
		return
	}
	limit := parseLimit(q.Get("limit"))

	records, err := h.source.Search(r.Context(), query, cfg.Pages)
	if err != nil {
		log.WithFields(log.Fields{
			"query":   query,
			"results": len(records),
			"err":     err,
		}).Warn("Torznab search incomplete")
		if len(records) == 0 {
			writeError(w, CodeInternalFailed, "Search failed")
			return
		}
	}
	if len(records) > limit {
		records = records[:limit]
	}

	base := requestBase(r)
	items := make([]rssItem, 0, len(records))
	for _, rec := range records {
		items = append(items, h.item(rec, base, cfg.APIKey))
	}

	writeXML(w, http.StatusOK, rssDoc{
		Version:   "2.0",
		AtomNS:    atomNS,
		TorznabNS: namespace,
		Channel: rssChannel{
			Title:         cfg.Title,
			Description:   cfg.Description,
			Language:      "en-us",
			LastBuildDate: h.now().UTC().Format(time.RFC1123Z),
			Items:         items,
		},
	})
}

func (h *Handler) item(rec scraper.PostingRecord, base, apiKey string) rssItem {
	var size int64
	if rec.FileSizeBytes != nil {
		size = *rec.FileSizeBytes
	}

	pub := h.now()
	if !rec.PostedDate.Time.IsZero() {
		pub = rec.PostedDate.Time
	}

	dl := base + "download?" + url.Values{
		"apikey": {apiKey},
		"link":   {rec.DetailsURL},
	}.Encode()

	return rssItem{
		Title:       rec.Title,
		GUID:        guid(rec.DetailsURL),
		Link:        dl,
		Comments:    rec.DetailsURL,
		PubDate:     pub.UTC().Format(time.RFC1123Z),
		Category:    "Audiobooks",
		Description: description(rec),
		Size:        size,
		Enclosure: rssEnclosure{
			URL:    dl,
			Length: size,
			Type:   "application/x-bittorrent;x-scheme-handler/magnet",
		},
		Attrs: []torznabAttr{
			{Name: "size", Value: strconv.FormatInt(size, 10)},
			{Name: "category", Value: strconv.Itoa(AudiobookCategory)},
		},
	}
}

func guid(link string) string {
	f := fnv.New64a()
	f.Write([]byte(link))
	return fmt.Sprintf("audiobookbay-%x", f.Sum64())
}

func description(rec scraper.PostingRecord) string {
	parts := []string{rec.Title}
	if rec.Format != "" {
		parts = append(parts, rec.Format)
	}
	if rec.BitrateKbps != nil {
		parts = append(parts, fmt.Sprintf("%d Kbps", *rec.BitrateKbps))
	}
	if rec.FileSizeDisplay != "" {
		parts = append(parts, rec.FileSizeDisplay)
	}
	if rec.Language != "" {
		parts = append(parts, rec.Language)
	}
	return strings.Join(parts, " | ")
}

// requestBase is the absolute URL of the handler's mount point, with a
// trailing slash.
func requestBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	// r.URL.Path has the mount prefix stripped; RequestURI still has it.
	path := r.URL.Path
	if u, err := url.ParseRequestURI(r.RequestURI); err == nil {
		path = u.Path
	}
	prefix := "/"
	if i := strings.LastIndex(path, "/"); i >= 0 {
		prefix = path[:i+1]
	}
	return scheme + "://" + r.Host + prefix
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("apikey") != h.settings().APIKey {
		writeError(w, CodeBadAPIKey, "Invalid API key")
		return
	}
	link := strings.TrimSpace(q.Get("link"))
	if link == "" {
		writeError(w, CodeMissingParam, "Missing link parameter")
		return
	}
	if !h.source.ValidateDetailsURL(link) {
		writeError(w, CodeNoSuchItem, "Link is not on a known AudiobookBay mirror")
		return
	}

	magnet, err := h.source.Magnet(r.Context(), link)
	if err != nil {
		log.WithFields(log.Fields{
			"link": link,
			"err":  err,
		}).Warn("Torznab download failed")
		if errors.Is(err, scraper.ErrInvalidDetailsURL) {
			writeError(w, CodeMissingParam, "Invalid link parameter")
			return
		}
		writeError(w, CodeNoSuchItem, "Could not build magnet link")
		return
	}

	http.Redirect(w, r, magnet, http.StatusFound)
}

func (h *Handler) info(w http.ResponseWriter, _ *http.Request) {
	cfg := h.settings()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, `%s
%s

Capabilities:  GET api?t=caps
Search:        GET api?t=search&apikey=KEY&q=QUERY&limit=N
Book search:   GET api?t=book&apikey=KEY&title=TITLE&author=AUTHOR
Download:      GET download?apikey=KEY&link=DETAILS_URL  (redirects to the magnet link)

Category: %d (Audiobooks)
`, cfg.Title, cfg.Description, AudiobookCategory)
}

func writeError(w http.ResponseWriter, code int, desc string) {
	writeXML(w, http.StatusOK, errorDoc{Code: code, Description: desc})
}

func writeXML(w http.ResponseWriter, status int, v any) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		log.WithField("err", err).Error("Could not encode torznab response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	w.Write(out)
}
