// Package download hands magnet links to a torrent client and reports back
// on the torrents it is working on. qBittorrent, Transmission and the Deluge
// web UI are supported; each adapter normalises its client's status into
// the same Status record.
package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/litescript/ls-abb/internal/config"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoClient means no download client is configured.
	ErrNoClient = errors.New("no download client configured")
	// ErrUnsupportedClient means the configured client type is unknown.
	ErrUnsupportedClient = errors.New("unsupported download client")
	// ErrNoSavePath means the save path base is not configured.
	ErrNoSavePath = errors.New("save path base not configured")
)

// ClientError wraps any failure talking to the download client, so callers
// can tell it apart from failures upstream of the client.
type ClientError struct {
	Client string
	Op     string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Client, e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Status is one torrent as reported by the client.
type Status struct {
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
	State    string  `json:"state"`
	Size     string  `json:"size"`
	Bytes    int64   `json:"bytes"`
}

// Client is a torrent download client.
type Client interface {
	// Name is the client type, e.g. "qbittorrent".
	Name() string
	// Add queues a magnet link, saving into savePath under category.
	Add(ctx context.Context, magnet, savePath, category string) error
	// Torrents lists torrents in category.
	Torrents(ctx context.Context, category string) ([]Status, error)
	// Ping checks that the client is reachable and the credentials work.
	Ping(ctx context.Context) error
}

const clientTimeout = 30 * time.Second

// New builds the client named in cfg.
func New(cfg config.DownloadConfig) (Client, error) {
	return newWithHTTP(cfg, &http.Client{Timeout: clientTimeout})
}

func newWithHTTP(cfg config.DownloadConfig, hc *http.Client) (Client, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Client))
	if kind == "" {
		return nil, ErrNoClient
	}

	base := cfg.BaseURL()
	if base == "" {
		return nil, fmt.Errorf("%s: no host or url configured", kind)
	}

	switch kind {
	case "qbittorrent":
		return NewQBittorrent(base, cfg.Username, cfg.Password, hc), nil
	case "transmission":
		return NewTransmission(base, cfg.Username, cfg.Password, hc), nil
	case "deluge", "delugeweb":
		return NewDeluge(base, cfg.Password, hc), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClient, cfg.Client)
	}
}

var unsafeTitleChars = regexp.MustCompile(`[<>:"/\\|?*]`)

const maxTitleLen = 200

// SanitizeTitle makes title safe to use as a directory name.
func SanitizeTitle(title string) string {
	t := unsafeTitleChars.ReplaceAllString(title, "")
	t = strings.Join(strings.Fields(t), " ")
	if r := []rune(t); len(r) > maxTitleLen {
		t = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	if t == "" {
		return "Unknown"
	}
	return t
}

// SavePath is the per-title directory under base.
func SavePath(base, title string) string {
	return path.Join(base, SanitizeTitle(title))
}

// Submit adds magnet to c, saving under a directory named after title.
func Submit(ctx context.Context, c Client, magnet, title string, cfg config.DownloadConfig) error {
	if cfg.SavePathBase == "" {
		return ErrNoSavePath
	}
	savePath := SavePath(cfg.SavePathBase, title)

	if err := c.Add(ctx, magnet, savePath, cfg.Category); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"client":   c.Name(),
		"savePath": savePath,
		"category": cfg.Category,
	}).Info("Torrent added")
	return nil
}

// newStatus fills in the display size and rounds progress (a percentage)
// to two decimals.
func newStatus(name string, progress float64, state string, size int64) Status {
	return Status{
		Name:     name,
		Progress: math.Round(progress*100) / 100,
		State:    state,
		Size:     humanize.IBytes(uint64(max(size, 0))),
		Bytes:    size,
	}
}
