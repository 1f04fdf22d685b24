package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build info for `clutter version`.
func String() string {
	return fmt.Sprintf("clutter %s (git %s, built %s)", Version, GitSHA, BuildTime)
}
