// Package httpapi exposes search, send and status over a small JSON API and
// mounts the Torznab endpoint next to it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/scraper"
	"github.com/litescript/ls-abb/internal/vpn"
	log "github.com/sirupsen/logrus"
)

// Mirrors is the mirror resolver as seen by the API.
type Mirrors interface {
	Current() string
	Candidates() []string
	Active(ctx context.Context, force bool) (string, error)
}

// VPNChecker reports the VPN state.
type VPNChecker interface {
	Check(ctx context.Context) vpn.Status
}

// Deps are the collaborators the API is built from.
type Deps struct {
	Source   scraper.Source
	Mirrors  Mirrors
	VPN      VPNChecker
	Torznab  http.Handler
	Download config.DownloadConfig

	// Stats describes the scraper for /api/mirror. Optional.
	Stats func() map[string]string

	// Client may be nil when no download client is configured.
	Client      download.Client
	ClientErr   error
	VPNRequired bool
}

// Server is the HTTP API.
type Server struct {
	source  scraper.Source
	mirrors Mirrors
	vpn     VPNChecker
	torznab http.Handler
	stats   func() map[string]string

	mu          sync.RWMutex
	dl          config.DownloadConfig
	client      download.Client
	clientErr   error
	vpnRequired bool
}

// New creates the API server.
func New(d Deps) *Server {
	s := &Server{
		source:  d.Source,
		mirrors: d.Mirrors,
		vpn:     d.VPN,
		torznab: d.Torznab,
		stats:   d.Stats,
	}
	s.SetDownload(d.Download, d.Client, d.ClientErr)
	s.SetVPNRequired(d.VPNRequired)
	return s
}

// SetDownload swaps the download client, e.g. after a config reload. err is
// what building the client failed with, reported on use.
func (s *Server) SetDownload(cfg config.DownloadConfig, c download.Client, err error) {
	if c == nil && err == nil {
		err = download.ErrNoClient
	}
	s.mu.Lock()
	s.dl, s.client, s.clientErr = cfg, c, err
	s.mu.Unlock()
}

// SetVPNRequired toggles the VPN guard on sends.
func (s *Server) SetVPNRequired(required bool) {
	s.mu.Lock()
	s.vpnRequired = required
	s.mu.Unlock()
}

func (s *Server) downloadClient() (download.Client, config.DownloadConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.dl, s.clientErr
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/mirror", s.handleMirror)
	mux.HandleFunc("POST /api/mirror/refresh", s.handleMirrorRefresh)
	mux.HandleFunc("GET /api/vpn", s.handleVPN)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	if s.torznab != nil {
		mux.Handle("/torznab/", http.StripPrefix("/torznab", s.torznab))
	}

	return Recover(Logging(mux))
}

type searchResp struct {
	Query   string                  `json:"query"`
	Results []scraper.PostingRecord `json:"results"`
	Count   int                     `json:"count"`
	Warning string                  `json:"warning,omitempty"`
}

type sendReq struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

type messageResp struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type statusResp struct {
	Client   string            `json:"client"`
	Category string            `json:"category"`
	Torrents []download.Status `json:"torrents"`
}

type mirrorResp struct {
	Active     string            `json:"active"`
	Candidates []string          `json:"candidates"`
	Stats      map[string]string `json:"stats,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, messageResp{Error: "missing query parameter q"})
		return
	}

	records, err := s.source.Search(r.Context(), query, 0)
	resp := searchResp{
		Query:   query,
		Results: records,
		Count:   len(records),
	}
	if resp.Results == nil {
		resp.Results = []scraper.PostingRecord{}
	}
	if err != nil {
		// Partial or empty results are still a successful search.
		resp.Warning = searchWarning(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func searchWarning(err error) string {
	switch {
	case errors.Is(err, scraper.ErrNoMirrorReachable), errors.Is(err, scraper.ErrAllMirrorsExhausted):
		return "No AudiobookBay mirror is reachable right now"
	default:
		return "Search stopped early: " + err.Error()
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResp{Error: "invalid request body"})
		return
	}
	req.Link = strings.TrimSpace(req.Link)
	if req.Link == "" {
		writeJSON(w, http.StatusBadRequest, messageResp{Error: "missing link"})
		return
	}
	if !s.source.ValidateDetailsURL(req.Link) {
		writeJSON(w, http.StatusBadRequest, messageResp{Error: "link is not on a known AudiobookBay mirror"})
		return
	}

	if !s.vpnUp(r.Context()) {
		writeJSON(w, http.StatusForbidden, messageResp{Error: "VPN is not connected; refusing to start download"})
		return
	}

	magnet, err := s.source.Magnet(r.Context(), req.Link)
	if err != nil {
		log.WithFields(log.Fields{
			"link": req.Link,
			"err":  err,
		}).Warn("Could not build magnet link")
		writeJSON(w, http.StatusBadGateway, messageResp{Error: "Failed to extract magnet link from page"})
		return
	}

	client, cfg, err := s.downloadClient()
	if err == nil {
		err = download.Submit(r.Context(), client, magnet, req.Title, cfg)
	}
	if err != nil {
		log.WithFields(log.Fields{
			"title": req.Title,
			"err":   err,
		}).Error("Could not hand torrent to download client")
		writeJSON(w, http.StatusInternalServerError, messageResp{Error: "Download client error: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, messageResp{
		Message: "Download added successfully! This may take some time, the download will show in your client once it starts.",
	})
}

// vpnUp reports whether a send may go ahead. With the guard on and no way to
// check, the answer is no.
func (s *Server) vpnUp(ctx context.Context) bool {
	s.mu.RLock()
	required := s.vpnRequired
	s.mu.RUnlock()
	if !required {
		return true
	}
	if s.vpn == nil {
		log.Warn("VPN required but no status check is configured")
		return false
	}
	return s.vpn.Check(ctx).Connected
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	client, cfg, err := s.downloadClient()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, messageResp{Error: "Download client error: " + err.Error()})
		return
	}

	torrents, err := client.Torrents(r.Context(), cfg.Category)
	if err != nil {
		log.WithField("err", err).Error("Could not list torrents")
		writeJSON(w, http.StatusInternalServerError, messageResp{Error: "Download client error: " + err.Error()})
		return
	}
	if torrents == nil {
		torrents = []download.Status{}
	}

	writeJSON(w, http.StatusOK, statusResp{
		Client:   client.Name(),
		Category: cfg.Category,
		Torrents: torrents,
	})
}

func (s *Server) handleMirror(w http.ResponseWriter, _ *http.Request) {
	resp := mirrorResp{
		Active:     s.mirrors.Current(),
		Candidates: s.mirrors.Candidates(),
	}
	if s.stats != nil {
		resp.Stats = s.stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMirrorRefresh(w http.ResponseWriter, r *http.Request) {
	host, err := s.mirrors.Active(r.Context(), true)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, messageResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, mirrorResp{
		Active:     host,
		Candidates: s.mirrors.Candidates(),
	})
}

func (s *Server) handleVPN(w http.ResponseWriter, r *http.Request) {
	if s.vpn == nil {
		writeJSON(w, http.StatusNotFound, messageResp{Error: "vpn check not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.vpn.Check(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("err", err).Warn("Could not write response")
	}
}
