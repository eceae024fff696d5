// Package buildconfig exposes values stamped in at link time, e.g.
//
//	go build -ldflags "-X github.com/botfleet/registry/internal/buildconfig.version=v1.2.0"
package buildconfig

import "runtime"

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// String renders "version (commit)", the form logged at startup.
func String() string {
	if len(commit) > 7 {
		return version + " (" + commit[:7] + ")"
	}
	return version + " (" + commit + ")"
}

// VersionInfo is reported by the health endpoint.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
		"go":      runtime.Version(),
	}
	if buildDate != "" {
		info["build_date"] = buildDate
	}
	return info
}
