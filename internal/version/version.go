// Package version carries build metadata injected through -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of budgetwatch. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// String renders the one-line version banner.
func String() string {
	return fmt.Sprintf("budgetwatch %s (commit %s, built %s)", Version, Commit, BuildDate)
}
