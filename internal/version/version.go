package version

import "fmt"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable build string for CLI output and startup logs.
func Full() string {
	return fmt.Sprintf("sia-bridge %s (commit %s, built %s)", Version, Commit, BuildTime)
}

// UserAgent identifies the broker in outbound HTTP requests, so downstream
// operators can tell which build delivered an event.
func UserAgent() string {
	return "sia-bridge/" + Version
}
