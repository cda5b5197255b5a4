package version

import "fmt"

var (
	// Version of s2l-bootstrap, set with -ldflags "-X .../version.Version=...".
	Version = "0.1.0"
	// Commit is the git revision of the build, "none" for local builds.
	Commit = "none"
	// BuildTime is when the binary was built (UTC).
	BuildTime = "unknown"
)

// Short returns the bare version, e.g. for log fields.
func Short() string {
	return Version
}

// Full returns the version line printed by `s2l-bootstrap version`.
func Full() string {
	return fmt.Sprintf("s2l-bootstrap %s (commit %s, built %s)", Version, Commit, BuildTime)
}
