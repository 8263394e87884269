// Package version exposes build metadata injected via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/TeldridgeLDN/Orchestrator-Project-sub005/pkg/version.Version=v1.0.0"
package version

import "fmt"

// Build-time variables injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

// GetFullVersion returns the version with commit and build date.
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
