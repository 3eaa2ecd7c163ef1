package download

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Deluge talks to the Deluge web UI's JSON-RPC endpoint
type Deluge struct {
	endpoint   string
	password   string
	httpClient *http.Client
	nextID     atomic.Int64

	mu       sync.Mutex
	loggedIn bool
}

// NewDeluge creates a Deluge web UI client
func NewDeluge(baseURL, password string, hc *http.Client) *Deluge {
	jar, _ := cookiejar.New(nil)
	c := *hc
	c.Jar = jar

	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/json") {
		endpoint += "/json"
	}
	return &Deluge{
		endpoint:   endpoint,
		password:   password,
		httpClient: &c,
	}
}

// Name returns the client type
func (c *Deluge) Name() string {
	return "deluge"
}

func (c *Deluge) fail(op string, err error) error {
	return &ClientError{Client: c.Name(), Op: op, Err: err}
}

// call runs one RPC method and returns its result.
func (c *Deluge) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
		"id":     c.nextID.Add(1),
	})
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: invalid json response", method)
	}

	res := gjson.ParseBytes(body)
	if e := res.Get("error"); e.Exists() && e.Type != gjson.Null {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.Raw
		}
		return gjson.Result{}, fmt.Errorf("%s: %s", method, msg)
	}
	return res.Get("result"), nil
}

// login authenticates and makes sure the web UI is attached to a daemon.
func (c *Deluge) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}

	ok, err := c.call(ctx, "auth.login", c.password)
	if err != nil {
		return c.fail("login", err)
	}
	if !ok.Bool() {
		return c.fail("login", errors.New("login failed: wrong password"))
	}

	connected, err := c.call(ctx, "web.connected")
	if err != nil {
		return c.fail("login", err)
	}
	if !connected.Bool() {
		hosts, err := c.call(ctx, "web.get_hosts")
		if err != nil {
			return c.fail("login", err)
		}
		first := hosts.Get("0.0")
		if !first.Exists() {
			return c.fail("login", errors.New("web UI has no daemon to connect to"))
		}
		if _, err := c.call(ctx, "web.connect", first.String()); err != nil {
			return c.fail("login", err)
		}
	}

	c.loggedIn = true
	return nil
}

// Ping logs in and checks the daemon connection
func (c *Deluge) Ping(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}
	if _, err := c.call(ctx, "daemon.info"); err != nil {
		return c.fail("ping", err)
	}
	return nil
}

// Add adds a torrent via magnet link and labels it with category
func (c *Deluge) Add(ctx context.Context, magnet, savePath, category string) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	opts := map[string]any{}
	if savePath != "" {
		opts["download_location"] = savePath
	}

	id, err := c.call(ctx, "core.add_torrent_magnet", magnet, opts)
	if err != nil {
		return c.fail("add", err)
	}

	if category != "" && id.String() != "" {
		label := strings.ToLower(category)
		// The label plugin may be missing or the label may already exist;
		// neither should fail the add.
		_, _ = c.call(ctx, "label.add", label)
		if _, err := c.call(ctx, "label.set_torrent", id.String(), label); err != nil {
			log.WithFields(log.Fields{
				"label": label,
				"err":   err,
			}).Warn("Could not label torrent")
		}
	}
	return nil
}

// Torrents returns the torrents labelled category
func (c *Deluge) Torrents(ctx context.Context, category string) ([]Status, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	filter := map[string]any{}
	if category != "" {
		filter["label"] = strings.ToLower(category)
	}
	res, err := c.call(ctx, "core.get_torrents_status", filter, []string{"name", "state", "progress", "total_size"})
	if err != nil {
		return nil, c.fail("list", err)
	}

	var out []Status
	res.ForEach(func(_, t gjson.Result) bool {
		out = append(out, newStatus(
			t.Get("name").String(),
			t.Get("progress").Float(),
			t.Get("state").String(),
			t.Get("total_size").Int(),
		))
		return true
	})
	return out, nil
}
