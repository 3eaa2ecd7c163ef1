package scraper

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 8 << 20

// Page is a fetched response body plus its status.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// OK reports a 200 response.
func (p *Page) OK() bool {
	return p.StatusCode == http.StatusOK
}

// Reader returns the body as a reader.
func (p *Page) Reader() io.Reader {
	return bytes.NewReader(p.Body)
}

// Fetcher performs paced GET requests with browser-like headers.
type Fetcher struct {
	client  *http.Client
	headers *Headers
	limiter *rate.Limiter
}

// NewFetcher creates a fetcher. rps <= 0 disables pacing.
func NewFetcher(headers *Headers, rps float64) *Fetcher {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Fetcher{
		client:  &http.Client{},
		headers: headers,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Get fetches rawURL with the given timeout. Transport failures come back as
// *NetworkError; any HTTP status is returned as a Page.
func (f *Fetcher) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	req.Header = f.headers.Build(nil)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	return &Page{URL: rawURL, StatusCode: resp.StatusCode, Body: body}, nil
}

// decodeBody undoes content encoding and transcodes the page to UTF-8. The
// size cap applies to the decoded body.
func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		dr, err := deflateReader(r)
		if err != nil {
			return nil, fmt.Errorf("deflate body: %w", err)
		}
		defer dr.Close()
		r = dr
	}

	r = io.LimitReader(r, maxBodyBytes)

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		utf8, err := charset.NewReader(r, ct)
		if err == nil {
			r = utf8
		}
	}

	return io.ReadAll(r)
}

// deflateReader reads HTTP "deflate", which is zlib-wrapped, and falls back
// to raw DEFLATE for servers that send it bare.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && len(head) < 2 {
		if err == io.EOF {
			return io.NopCloser(br), nil
		}
		return nil, err
	}
	if isZlibHeader(head[0], head[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair: method 8 and a header
// checksum divisible by 31.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
