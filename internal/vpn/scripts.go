// Package vpn checks whether the VPN is up before torrents are handed to the
// download client. Status comes from an external script whose output is
// parsed for nordvpn/wireguard style status lines.
package vpn

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// ErrNoScript means no status script is configured.
var ErrNoScript = errors.New("no vpn status script configured")

const checkTimeout = 5 * time.Second

// Status represents VPN connection state
type Status struct {
	Connected bool   `json:"connected"`
	Server    string `json:"server,omitempty"`
	Country   string `json:"country,omitempty"`
	IP        string `json:"ip,omitempty"`
	Error     error  `json:"-"`
}

// Checker runs the status script
type Checker struct {
	statusScript string
}

// NewChecker creates a VPN status checker
func NewChecker(statusScript string) *Checker {
	return &Checker{statusScript: statusScript}
}

// Check runs the status script and parses output
func (c *Checker) Check(ctx context.Context) Status {
	if c.statusScript == "" {
		return Status{Error: ErrNoScript}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", c.statusScript)
	output, err := cmd.Output()
	if err != nil {
		// Script failed or VPN not connected
		return Status{Connected: false, Error: err}
	}

	return parseStatus(string(output))
}

// parseStatus extracts VPN info from status script output
func parseStatus(output string) Status {
	s := Status{}
	lower := strings.ToLower(output)

	// Connected indicators:
	// - "Status: Connected" (nordvpn)
	// - "interface: UP" or a tun0 line with "up"
	if strings.Contains(lower, "interface: up") ||
		strings.Contains(lower, "tun0") && strings.Contains(lower, "up") ||
		(strings.Contains(lower, "connected") && !strings.Contains(lower, "disconnected")) {
		s.Connected = true
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		lineLower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lineLower, "server:"):
			s.Server = strings.TrimSpace(line[7:])
		case strings.HasPrefix(lineLower, "hostname:"):
			s.Server = strings.TrimSpace(line[9:])
		case strings.HasPrefix(lineLower, "country:"):
			s.Country = strings.TrimSpace(line[8:])
		case strings.HasPrefix(lineLower, "public ip:"):
			s.IP = strings.TrimSpace(line[10:])
		case strings.HasPrefix(lineLower, "ip:"):
			s.IP = strings.TrimSpace(line[3:])
		}
	}

	return s
}

// StatusString returns a short status string for display
func (s Status) StatusString() string {
	if s.Connected {
		if s.Country != "" {
			return "VPN: " + s.Country
		}
		if s.Server != "" {
			return "VPN: " + s.Server
		}
		return "VPN: Connected"
	}
	return "VPN: Disconnected"
}
