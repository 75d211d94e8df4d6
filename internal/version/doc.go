// Package version exposes build metadata for the broker binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. Full renders
// the startup/CLI line and UserAgent tags outbound HTTP deliveries.
package version
