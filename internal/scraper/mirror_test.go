package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		defaults   []string
		want       []string
	}{
		{
			name:       "configured first",
			configured: "Custom.Test",
			defaults:   []string{"a.test", "b.test"},
			want:       []string{"custom.test", "a.test", "b.test"},
		},
		{
			name:       "configured duplicate of a default",
			configured: "b.test",
			defaults:   []string{"a.test", "B.TEST"},
			want:       []string{"b.test", "a.test"},
		},
		{
			name:       "scheme and slash stripped",
			configured: "https://c.test/",
			defaults:   []string{"a.test"},
			want:       []string{"c.test", "a.test"},
		},
		{
			name:     "no configured host",
			defaults: []string{"a.test", "", "a.test"},
			want:     []string{"a.test"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.configured, tt.defaults))
		})
	}
}

func TestResolverActive(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"mirror-a.test": alive(nil),
		"mirror-b.test": alive(nil),
	})
	s := newTestScraper(net)
	r := s.Resolver()

	host, err := r.Active(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "mirror-a.test", host)
	assert.Equal(t, "mirror-a.test", r.Current())

	// cached, no new probe
	host, err = r.Active(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "mirror-a.test", host)
	assert.Equal(t, 1, net.count("mirror-a.test/"))

	_, err = r.Active(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, net.count("mirror-a.test/"))

	r.Clear()
	assert.Empty(t, r.Current())
}

func TestResolverProbe(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"empty.test": func(*http.Request) (int, string, error) { return http.StatusOK, "   ", nil },
		"down.test":  func(*http.Request) (int, string, error) { return http.StatusServiceUnavailable, "busy", nil },
		"up.test":    alive(nil),
	})
	r := newTestScraper(net).Resolver()

	assert.False(t, r.Probe(context.Background(), "empty.test"))
	assert.False(t, r.Probe(context.Background(), "down.test"))
	assert.False(t, r.Probe(context.Background(), "missing.test"))
	assert.True(t, r.Probe(context.Background(), "up.test"))
}

func TestResolverNoneReachable(t *testing.T) {
	r := newTestScraper(newFakeNet(nil)).Resolver()

	_, err := r.Active(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoMirrorReachable)
	assert.Empty(t, r.Current())
}

func TestWithMirrorFailover(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"primary.test":  alive(nil),
		"mirror-a.test": alive(nil),
	})
	r := newTestScraper(net).Resolver()

	var tried []string
	got, err := WithMirror(context.Background(), r, func(_ context.Context, host string) (string, error) {
		tried = append(tried, host)
		if host == "primary.test" {
			return "", &NetworkError{URL: "https://primary.test/", Err: errors.New("reset by peer")}
		}
		return "ok from " + host, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok from mirror-a.test", got)
	assert.Equal(t, []string{"primary.test", "mirror-a.test"}, tried)
	assert.Equal(t, "mirror-a.test", r.Current())

	// The cached host is reused without another probe.
	got, err = WithMirror(context.Background(), r, func(_ context.Context, host string) (string, error) {
		return host, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "mirror-a.test", got)
	assert.Equal(t, 1, net.count("mirror-a.test/"))
}

func TestWithMirrorNonNetworkErrorAborts(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"primary.test":  alive(nil),
		"mirror-a.test": alive(nil),
	})
	r := newTestScraper(net).Resolver()
	boom := errors.New("parse failure")

	calls := 0
	_, err := WithMirror(context.Background(), r, func(context.Context, string) (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "primary.test", r.Current())
}

func TestWithMirrorExhausted(t *testing.T) {
	net := newFakeNet(map[string]fakeSite{
		"primary.test":  alive(nil),
		"mirror-b.test": alive(nil),
	})
	r := newTestScraper(net).Resolver()

	_, err := WithMirror(context.Background(), r, func(_ context.Context, host string) (int, error) {
		return 0, &NetworkError{URL: host, Err: context.DeadlineExceeded}
	})
	assert.ErrorIs(t, err, ErrAllMirrorsExhausted)
	assert.Empty(t, r.Current())

	_, err = WithMirror(context.Background(), newTestScraper(newFakeNet(nil)).Resolver(), func(context.Context, string) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrAllMirrorsExhausted)
}

func TestIsNetwork(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network error", err: &NetworkError{URL: "u", Err: errors.New("x")}, want: true},
		{name: "wrapped network error", err: errors.Join(errors.New("ctx"), &NetworkError{URL: "u", Err: errors.New("x")}), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "status error", err: &StatusError{URL: "u", Code: 500}, want: false},
		{name: "plain", err: errors.New("plain"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetwork(tt.err))
		})
	}
}
