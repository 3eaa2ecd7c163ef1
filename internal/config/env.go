package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none
// are named) into the process environment. Variables already set win. A
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any of the supported environment variables.
func ApplyEnv(cfg *Config) error {
	var errs []error
	note := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	setString("ABB_HOSTNAME", &cfg.Site.Hostname)
	if v := os.Getenv("ABB_MIRRORS"); v != "" {
		cfg.Site.Mirrors = splitList(v)
	}
	note(setInt("PAGE_LIMIT", &cfg.Site.PageLimit))
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			note(fmt.Errorf("REQUEST_TIMEOUT: %w", err))
		} else {
			cfg.Site.Timeout = Duration{d}
		}
	}
	note(setBool("INCOGNITO_MODE", &cfg.Site.Incognito))
	note(setBool("ROTATE_USER_AGENT", &cfg.Site.RotateUserAgent))
	if v := os.Getenv("REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			note(fmt.Errorf("REQUESTS_PER_SECOND: invalid number %q", v))
		} else {
			cfg.Site.RequestsPerSecond = f
		}
	}

	setString("DOWNLOAD_CLIENT", &cfg.Download.Client)
	if v := os.Getenv("DL_URL"); v != "" {
		note(applyDownloadURL(&cfg.Download, v))
	} else {
		setString("DL_SCHEME", &cfg.Download.Scheme)
		setString("DL_HOST", &cfg.Download.Host)
		note(setInt("DL_PORT", &cfg.Download.Port))
	}
	setString("DL_USERNAME", &cfg.Download.Username)
	setString("DL_PASSWORD", &cfg.Download.Password)
	setString("DL_CATEGORY", &cfg.Download.Category)
	setString("SAVE_PATH_BASE", &cfg.Download.SavePathBase)

	setString("TORZNAB_API_KEY", &cfg.Torznab.APIKey)
	setString("TORZNAB_TITLE", &cfg.Torznab.Title)
	setString("TORZNAB_DESCRIPTION", &cfg.Torznab.Description)
	note(setInt("TORZNAB_PAGES", &cfg.Torznab.Pages))

	setString("LISTEN", &cfg.Server.Listen)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	setString("VPN_STATUS_SCRIPT", &cfg.VPN.StatusScript)
	note(setBool("VPN_REQUIRED", &cfg.VPN.Required))

	return errors.Join(errs...)
}

// applyDownloadURL fills URL, Scheme, Host and Port from a DL_URL value.
func applyDownloadURL(d *DownloadConfig, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("DL_URL: invalid url %q", raw)
	}
	d.URL = raw
	d.Scheme = u.Scheme
	d.Host = u.Hostname()
	d.Port = 0
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("DL_URL: invalid port %q", p)
		}
		d.Port = n
	}
	return nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func setBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
