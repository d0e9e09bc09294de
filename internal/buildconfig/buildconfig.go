// Package buildconfig carries build-time identity injected via ldflags:
//
//	-X github.com/attune-ai/attune/internal/buildconfig.version=v1.2.3
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Version returns the build version.
func Version() string {
	return version
}

// Commit returns the git commit hash.
func Commit() string {
	return commit
}

// Info returns the full build identity for logs and /metrics.
func Info() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
}
