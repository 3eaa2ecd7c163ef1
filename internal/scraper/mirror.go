package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Candidates builds the ordered mirror list: the configured host first, then
// the defaults, lower-cased and without duplicates.
func Candidates(configured string, defaults []string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(h string) {
		h = normalizeHost(h)
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		out = append(out, h)
	}

	add(configured)
	for _, h := range defaults {
		add(h)
	}
	return out
}

func normalizeHost(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	return strings.TrimRight(h, "/")
}

// Resolver tracks which mirror is currently usable.
//
// The cached host lives for the lifetime of the Resolver. It is cleared when
// an operation against it fails at the network level, so the next call
// re-probes.
type Resolver struct {
	fetcher    *Fetcher
	candidates []string

	mu      sync.Mutex
	active  string
	timeout time.Duration
}

// NewResolver creates a resolver over a fixed candidate list.
func NewResolver(candidates []string, fetcher *Fetcher, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		fetcher:    fetcher,
		candidates: append([]string(nil), candidates...),
		timeout:    timeout,
	}
}

// Candidates returns a copy of the candidate list.
func (r *Resolver) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// IsCandidate reports whether host is one of the known mirrors.
func (r *Resolver) IsCandidate(host string) bool {
	host = normalizeHost(host)
	for _, c := range r.candidates {
		if c == host {
			return true
		}
	}
	return false
}

// Current returns the cached active host, or "" when unresolved.
func (r *Resolver) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Clear forgets the active host.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.active = ""
	r.mu.Unlock()
}

func (r *Resolver) set(host string) {
	r.mu.Lock()
	r.active = host
	r.mu.Unlock()
}

func (r *Resolver) clearIf(host string) {
	r.mu.Lock()
	if r.active == host {
		r.active = ""
	}
	r.mu.Unlock()
}

func (r *Resolver) requestTimeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeout
}

func (r *Resolver) setTimeout(d time.Duration) {
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()
}

// Probe reports whether https://host/ answers 200 with a non-empty body.
// It never returns an error; any failure is simply "not alive".
func (r *Resolver) Probe(ctx context.Context, host string) bool {
	page, err := r.fetcher.Get(ctx, r.fetcher.headers.CacheBust("https://"+host+"/"), r.requestTimeout())
	if err != nil {
		log.WithFields(log.Fields{
			"host": host,
			"err":  err,
		}).Debug("Mirror probe failed")
		return false
	}
	alive := page.OK() && len(strings.TrimSpace(string(page.Body))) > 0
	log.WithFields(log.Fields{
		"host":   host,
		"status": page.StatusCode,
		"alive":  alive,
	}).Debug("Mirror probed")
	return alive
}

// Active returns the cached mirror, or probes candidates in order and caches
// the first live one. force skips the cache.
func (r *Resolver) Active(ctx context.Context, force bool) (string, error) {
	if !force {
		if host := r.Current(); host != "" {
			return host, nil
		}
	}

	for _, host := range r.candidates {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if r.Probe(ctx, host) {
			r.set(host)
			log.WithField("host", host).Info("Using mirror")
			return host, nil
		}
	}

	r.Clear()
	return "", ErrNoMirrorReachable
}

// order returns the candidates with the cached active host moved to the front.
func (r *Resolver) order() []string {
	active := r.Current()
	if active == "" {
		return r.candidates
	}
	out := make([]string, 0, len(r.candidates))
	out = append(out, active)
	for _, c := range r.candidates {
		if c != active {
			out = append(out, c)
		}
	}
	return out
}

// WithMirror runs op against the cached host, then each other candidate in
// order, until one succeeds.
//
// A candidate that fails its probe is skipped. A network failure from op
// clears the cached host and moves on to the next candidate; any other error
// is returned as is. When every candidate has been tried the result wraps
// ErrAllMirrorsExhausted.
func WithMirror[T any](ctx context.Context, r *Resolver, op func(ctx context.Context, host string) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for _, host := range r.order() {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		// The cached host already passed a probe; don't pay for another one.
		if r.Current() != host {
			if !r.Probe(ctx, host) {
				r.clearIf(host)
				continue
			}
			r.set(host)
		}

		res, err := op(ctx, host)
		if err == nil {
			return res, nil
		}
		if !IsNetwork(err) || errors.Is(err, context.Canceled) {
			return zero, err
		}

		log.WithFields(log.Fields{
			"host": host,
			"err":  err,
		}).Warn("Mirror failed, trying next")
		r.clearIf(host)
		lastErr = err
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%w: %v", ErrAllMirrorsExhausted, lastErr)
	}
	return zero, ErrAllMirrorsExhausted
}
