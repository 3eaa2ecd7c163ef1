package download

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

const sessionHeader = "X-Transmission-Session-Id"

var errSessionExpired = errors.New("transmission session id expired")

// transmissionStates maps torrent-get status codes to readable states.
var transmissionStates = map[int64]string{
	0: "stopped",
	1: "check pending",
	2: "checking",
	3: "download pending",
	4: "downloading",
	5: "seed pending",
	6: "seeding",
}

// Transmission talks to Transmission's JSON-RPC endpoint
type Transmission struct {
	rpcURL     string
	username   string
	password   string
	httpClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewTransmission creates a Transmission RPC client. A base URL without a
// path gets the default /transmission/rpc endpoint.
func NewTransmission(baseURL, username, password string, hc *http.Client) *Transmission {
	rpcURL := strings.TrimRight(baseURL, "/")
	if u, err := url.Parse(rpcURL); err == nil && (u.Path == "" || u.Path == "/") {
		rpcURL += "/transmission/rpc"
	}
	return &Transmission{
		rpcURL:     rpcURL,
		username:   username,
		password:   password,
		httpClient: hc,
	}
}

// Name returns the client type
func (c *Transmission) Name() string {
	return "transmission"
}

func (c *Transmission) fail(op string, err error) error {
	return &ClientError{Client: c.Name(), Op: op, Err: err}
}

// call runs one RPC method, redoing it once when the server hands out a new
// session id.
func (c *Transmission) call(ctx context.Context, method string, args any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{
		"method":    method,
		"arguments": args,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	res, err := c.post(ctx, payload)
	if errors.Is(err, errSessionExpired) {
		res, err = c.post(ctx, payload)
	}
	if err != nil {
		return gjson.Result{}, err
	}

	if result := res.Get("result").String(); result != "success" {
		return gjson.Result{}, fmt.Errorf("%s: %s", method, result)
	}
	return res.Get("arguments"), nil
}

func (c *Transmission) post(ctx context.Context, payload []byte) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		c.mu.Lock()
		c.sessionID = resp.Header.Get(sessionHeader)
		c.mu.Unlock()
		return gjson.Result{}, errSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("invalid json response")
	}
	return gjson.ParseBytes(body), nil
}

// Ping fetches the session settings
func (c *Transmission) Ping(ctx context.Context) error {
	if _, err := c.call(ctx, "session-get", map[string]any{"fields": []string{"version"}}); err != nil {
		return c.fail("ping", err)
	}
	return nil
}

// Add adds a torrent via magnet link
func (c *Transmission) Add(ctx context.Context, magnet, savePath, category string) error {
	args := map[string]any{"filename": magnet}
	if savePath != "" {
		args["download-dir"] = savePath
	}
	if category != "" {
		args["labels"] = []string{category}
	}

	res, err := c.call(ctx, "torrent-add", args)
	if err != nil {
		return c.fail("add", err)
	}
	if !res.Get("torrent-added").Exists() && !res.Get("torrent-duplicate").Exists() {
		return c.fail("add", errors.New("torrent was not added"))
	}
	return nil
}

// Torrents returns the torrents labelled category, or all torrents when
// category is empty
func (c *Transmission) Torrents(ctx context.Context, category string) ([]Status, error) {
	res, err := c.call(ctx, "torrent-get", map[string]any{
		"fields": []string{"name", "percentDone", "status", "totalSize", "labels"},
	})
	if err != nil {
		return nil, c.fail("list", err)
	}

	var out []Status
	res.Get("torrents").ForEach(func(_, t gjson.Result) bool {
		if category != "" && !hasLabel(t.Get("labels"), category) {
			return true
		}
		state, ok := transmissionStates[t.Get("status").Int()]
		if !ok {
			state = "unknown"
		}
		out = append(out, newStatus(
			t.Get("name").String(),
			t.Get("percentDone").Float()*100,
			state,
			t.Get("totalSize").Int(),
		))
		return true
	})
	return out, nil
}

func hasLabel(labels gjson.Result, want string) bool {
	for _, l := range labels.Array() {
		if strings.EqualFold(l.String(), want) {
			return true
		}
	}
	return false
}
