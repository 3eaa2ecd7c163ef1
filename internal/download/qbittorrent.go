package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

// QBittorrent talks to the qBittorrent Web API
type QBittorrent struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu       sync.Mutex
	loggedIn bool
}

// qbitTorrent is the part of /api/v2/torrents/info we use
type qbitTorrent struct {
	Hash      string  `json:"hash"`
	Name      string  `json:"name"`
	TotalSize int64   `json:"total_size"`
	Size      int64   `json:"size"`
	Progress  float64 `json:"progress"`
	State     string  `json:"state"`
	Category  string  `json:"category"`
}

// NewQBittorrent creates a qBittorrent API client. The client's cookie jar
// is replaced so the session cookie sticks.
func NewQBittorrent(baseURL, username, password string, hc *http.Client) *QBittorrent {
	jar, _ := cookiejar.New(nil)
	c := *hc
	c.Jar = jar

	return &QBittorrent{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &c,
	}
}

// Name returns the client type
func (c *QBittorrent) Name() string {
	return "qbittorrent"
}

func (c *QBittorrent) fail(op string, err error) error {
	return &ClientError{Client: c.Name(), Op: op, Err: err}
}

// login authenticates with the qBittorrent API
func (c *QBittorrent) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}

	data := url.Values{}
	data.Set("username", c.username)
	data.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(data.Encode()))
	if err != nil {
		return c.fail("login", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// qBittorrent rejects logins without a matching Referer when CSRF protection is on.
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail("login", fmt.Errorf("failed to connect to qBittorrent: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "Ok." {
		return c.fail("login", fmt.Errorf("login failed: %s", strings.TrimSpace(string(body))))
	}

	c.loggedIn = true
	return nil
}

// Ping checks the login and fetches the application version
func (c *QBittorrent) Ping(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/app/version", nil)
	if err != nil {
		return c.fail("ping", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail("ping", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.fail("ping", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// Add adds a torrent via magnet link
func (c *QBittorrent) Add(ctx context.Context, magnet, savePath, category string) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("urls", magnet)
	if savePath != "" {
		_ = writer.WriteField("savepath", savePath)
	}
	if category != "" {
		_ = writer.WriteField("category", category)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/torrents/add", &body)
	if err != nil {
		return c.fail("add", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail("add", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(respBody)) == "Fails." {
		return c.fail("add", fmt.Errorf("failed to add torrent: %s", strings.TrimSpace(string(respBody))))
	}

	return nil
}

// Torrents returns the torrents in category
func (c *QBittorrent) Torrents(ctx context.Context, category string) ([]Status, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/api/v2/torrents/info"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, c.fail("list", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail("list", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail("list", fmt.Errorf("status %d", resp.StatusCode))
	}

	var torrents []qbitTorrent
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, c.fail("list", err)
	}

	out := make([]Status, 0, len(torrents))
	for _, t := range torrents {
		size := t.TotalSize
		if size == 0 {
			size = t.Size
		}
		out = append(out, newStatus(t.Name, t.Progress*100, t.State, size))
	}
	return out, nil
}
