// Package version carries build metadata injected via -ldflags.
package version

var (
	// Version is the semantic version of the build
	Version = "dev"
	// GitCommit is the short commit hash of the build
	GitCommit = "unknown"
)
