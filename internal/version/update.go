package version

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	repo          = "litescript/ls-abb"
	githubAPI     = "https://api.github.com"
	updateTimeout = 5 * time.Second
)

// UpdateInfo contains information about available updates.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	Error           error
}

// Checker looks up the latest published version.
type Checker struct {
	BaseURL string
	Client  *http.Client
}

// CheckForUpdate checks GitHub for the latest release version.
func CheckForUpdate(ctx context.Context) UpdateInfo {
	c := Checker{BaseURL: githubAPI, Client: &http.Client{Timeout: updateTimeout}}
	return c.Check(ctx)
}

// Check asks for the latest release and falls back to tags when the repo
// has no releases yet.
func (c Checker) Check(ctx context.Context) UpdateInfo {
	info := UpdateInfo{CurrentVersion: Version}

	body, status, err := c.get(ctx, "/repos/"+repo+"/releases/latest")
	if err != nil {
		info.Error = fmt.Errorf("failed to check for updates: %w", err)
		return info
	}

	var tag string
	if status == http.StatusOK {
		tag = gjson.GetBytes(body, "tag_name").String()
	} else {
		body, status, err = c.get(ctx, "/repos/"+repo+"/tags")
		if err != nil {
			info.Error = fmt.Errorf("failed to check for updates: %w", err)
			return info
		}
		if status != http.StatusOK {
			info.Error = fmt.Errorf("failed to check for updates: status %d", status)
			return info
		}
		if !gjson.ValidBytes(body) {
			info.Error = fmt.Errorf("failed to parse update response")
			return info
		}
		// Tags are returned newest first
		tag = gjson.GetBytes(body, "0.name").String()
	}

	if tag == "" {
		info.LatestVersion = info.CurrentVersion
		return info
	}
	info.LatestVersion = normalizeVersion(tag)
	info.UpdateAvailable = isNewerVersion(info.LatestVersion, info.CurrentVersion)
	return info
}

func (c Checker) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return body, resp.StatusCode, err
}

// normalizeVersion strips the "v" prefix if present.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion returns true if latest is newer than current, comparing
// dotted parts numerically.
func isNewerVersion(latest, current string) bool {
	latestParts := strings.Split(latest, ".")
	currentParts := strings.Split(current, ".")

	for i := 0; i < len(latestParts) && i < len(currentParts); i++ {
		l, _ := strconv.Atoi(leadingDigits(latestParts[i]))
		c, _ := strconv.Atoi(leadingDigits(currentParts[i]))
		if l != c {
			return l > c
		}
	}
	return len(latestParts) > len(currentParts)
}

// leadingDigits keeps "3" of "3-rc1".
func leadingDigits(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}

// InstallCommand returns the command to update the application.
func InstallCommand() string {
	return "go install github.com/" + repo + "/cmd/abb@latest"
}
