// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.1.0 - Scraper, mirror failover and magnet building
// 0.2.0 - Download clients and HTTP API
// 0.3.0 - Torznab endpoint and TUI
// 1.0.0 - (planned) Feature-complete public release
