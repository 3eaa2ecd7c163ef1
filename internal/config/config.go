// Package config handles application configuration via TOML files.
// Configuration is stored at ~/.config/abb/config.toml and covers the
// AudiobookBay site and its mirrors, the download client, the Torznab
// endpoint, the HTTP listener, logging and the VPN guard. Environment
// variables override anything read from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultCategory is the download client category/label for added torrents.
const DefaultCategory = "Audiobookbay-Audiobooks"

// Config holds application configuration
type Config struct {
	Site     SiteConfig     `toml:"site"`
	Download DownloadConfig `toml:"download"`
	Torznab  TorznabConfig  `toml:"torznab"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	VPN      VPNConfig      `toml:"vpn"`
}

// SiteConfig holds the scraper settings
type SiteConfig struct {
	// Hostname is tried before the built-in mirrors.
	Hostname string `toml:"hostname"`

	// Mirrors replaces the built-in mirror list when non-empty.
	Mirrors []string `toml:"mirrors"`

	PageLimit         int      `toml:"page_limit"`
	Timeout           Duration `toml:"timeout"`
	Incognito         bool     `toml:"incognito"`
	RotateUserAgent   bool     `toml:"rotate_user_agent"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// DownloadConfig holds download client settings
type DownloadConfig struct {
	// Client is one of qbittorrent, transmission, deluge or delugeweb.
	Client string `toml:"client"`

	// URL wins over Scheme/Host/Port when set.
	URL    string `toml:"url"`
	Scheme string `toml:"scheme"`
	Host   string `toml:"host"`
	Port   int    `toml:"port"`

	Username string `toml:"username"`
	Password string `toml:"password"`
	Category string `toml:"category"`

	// SavePathBase is the directory, as seen by the download client,
	// under which each audiobook gets its own folder.
	SavePathBase string `toml:"save_path_base"`
}

// BaseURL returns the client's base URL, or "" when no host is configured.
func (d DownloadConfig) BaseURL() string {
	if d.URL != "" {
		return strings.TrimRight(d.URL, "/")
	}
	if d.Host == "" {
		return ""
	}
	scheme := d.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if d.Port == 0 {
		return scheme + "://" + d.Host
	}
	return fmt.Sprintf("%s://%s:%d", scheme, d.Host, d.Port)
}

// TorznabConfig holds the Torznab endpoint settings
type TorznabConfig struct {
	APIKey      string `toml:"api_key"`
	Title       string `toml:"title"`
	Description string `toml:"description"`

	// Pages is how many result pages a Torznab search walks.
	Pages int `toml:"pages"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// VPNConfig holds VPN configuration
type VPNConfig struct {
	StatusScript string `toml:"status_script"`

	// Required refuses to hand torrents to the client while the VPN is down.
	Required bool `toml:"required"`
}

// Duration is a time.Duration that reads "10s" style strings or plain seconds.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Site: SiteConfig{
			Hostname:        "audiobookbay.lu",
			PageLimit:       5,
			Timeout:         Duration{10 * time.Second},
			RotateUserAgent: true,
		},
		Download: DownloadConfig{
			Scheme:   "http",
			Category: DefaultCategory,
		},
		Torznab: TorznabConfig{
			APIKey:      "audiobookbay-automated",
			Title:       "AudiobookBay Automated",
			Description: "AudiobookBay search via Torznab API",
			Pages:       3,
		},
		Server: ServerConfig{
			Listen: ":5078",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	if p := os.Getenv("ABB_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "abb", "config.toml")
}

// Load reads config from path, falling back to defaults for a missing file,
// then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No config file, defaults it is
	case err != nil:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes config to path
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate rejects settings the scraper can't work with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Site.Hostname) == "" && len(c.Site.Mirrors) == 0 {
		errs = append(errs, errors.New("site.hostname must not be empty"))
	}
	if c.Site.PageLimit < 1 {
		errs = append(errs, fmt.Errorf("site.page_limit must be at least 1, got %d", c.Site.PageLimit))
	}
	if c.Site.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("site.timeout must be positive, got %s", c.Site.Timeout))
	}
	if c.Site.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("site.requests_per_second must not be negative"))
	}
	if c.Torznab.Pages < 1 {
		errs = append(errs, fmt.Errorf("torznab.pages must be at least 1, got %d", c.Torznab.Pages))
	}
	return errors.Join(errs...)
}
