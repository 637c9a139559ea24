package version

import "fmt"

// Version contains the application version information.
// Set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/livedocs/internal/version.Version=v0.3.0".
var Version = "dev"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// UserAgent is sent with every content request.
func UserAgent() string {
	return "livedocs/" + Version
}

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("livedocs %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
