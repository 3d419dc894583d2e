// Package version provides build-time version information.
package version

import "fmt"

var (
	// Version is the semantic version, set via ldflags.
	Version = "dev"
	// Commit is the short git commit hash, set via ldflags.
	Commit = "unknown"
	// GitTime is the commit timestamp in ISO 8601 UTC format, set via ldflags.
	GitTime = "unknown"
)

// UserAgent is sent with every request to the remote knowledge base.
func UserAgent() string {
	return fmt.Sprintf("docmap/%s (%s)", Version, Commit)
}
