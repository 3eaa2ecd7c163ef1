package vpn

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Status
	}{
		{
			name: "nordvpn connected",
			output: "Status: Connected\nHostname: de1042.nordvpn.com\nIP: 185.1.2.3\nCountry: Germany\n",
			want:   Status{Connected: true, Server: "de1042.nordvpn.com", Country: "Germany", IP: "185.1.2.3"},
		},
		{
			name:   "disconnected",
			output: "Status: Disconnected\n",
			want:   Status{},
		},
		{
			name:   "interface check",
			output: "interface: UP\nServer: wg0\nPublic IP: 10.1.1.1\n",
			want:   Status{Connected: true, Server: "wg0", IP: "10.1.1.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseStatus(tt.output))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "VPN: Germany", Status{Connected: true, Country: "Germany", Server: "x"}.StatusString())
	assert.Equal(t, "VPN: x", Status{Connected: true, Server: "x"}.StatusString())
	assert.Equal(t, "VPN: Connected", Status{Connected: true}.StatusString())
	assert.Equal(t, "VPN: Disconnected", Status{Country: "Germany"}.StatusString())
}

func TestCheckRunsScript(t *testing.T) {
	dir := t.TempDir()
	up := filepath.Join(dir, "up.sh")
	require.NoError(t, os.WriteFile(up, []byte("echo 'Status: Connected'\necho 'Country: Iceland'\n"), 0o755))
	failing := filepath.Join(dir, "down.sh")
	require.NoError(t, os.WriteFile(failing, []byte("exit 3\n"), 0o755))

	s := NewChecker(up).Check(context.Background())
	assert.True(t, s.Connected)
	assert.Equal(t, "Iceland", s.Country)
	assert.NoError(t, s.Error)

	s = NewChecker(failing).Check(context.Background())
	assert.False(t, s.Connected)
	assert.Error(t, s.Error)

	s = NewChecker("").Check(context.Background())
	assert.ErrorIs(t, s.Error, ErrNoScript)
}
