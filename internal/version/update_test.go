package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"0.4.0", "0.3.0", true},
		{"0.3.0", "0.3.0", false},
		{"0.2.9", "0.3.0", false},
		{"1.0", "0.9.9", true},
		{"0.3.0.1", "0.3.0", true},
		{"0.10.0", "0.9.0", true},
		{"0.4.0-rc1", "0.3.0", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNewerVersion(tt.latest, tt.current), "%s vs %s", tt.latest, tt.current)
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "1.2.3", normalizeVersion("v1.2.3"))
	assert.Equal(t, "1.2.3", normalizeVersion(" 1.2.3 "))
}

func TestCheckRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/litescript/ls-abb/releases/latest", r.URL.Path)
		w.Write([]byte(`{"tag_name":"v9.0.0"}`))
	}))
	defer srv.Close()

	info := Checker{BaseURL: srv.URL}.Check(context.Background())
	require.NoError(t, info.Error)
	assert.Equal(t, "9.0.0", info.LatestVersion)
	assert.True(t, info.UpdateAvailable)
}

func TestCheckFallsBackToTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/litescript/ls-abb/tags" {
			w.Write([]byte(`[{"name":"v0.1.0"},{"name":"v0.0.9"}]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	info := Checker{BaseURL: srv.URL}.Check(context.Background())
	require.NoError(t, info.Error)
	assert.Equal(t, "0.1.0", info.LatestVersion)
	assert.False(t, info.UpdateAvailable)
}

func TestCheckErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	info := Checker{BaseURL: srv.URL}.Check(context.Background())
	assert.ErrorContains(t, info.Error, "status 403")
	assert.Equal(t, Version, info.CurrentVersion)
}

func TestInstallCommand(t *testing.T) {
	assert.Equal(t, "go install github.com/litescript/ls-abb/cmd/abb@latest", InstallCommand())
}
