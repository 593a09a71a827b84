package buildconfig

import (
	"runtime"
	"runtime/debug"
)

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/truthstake/internal/buildconfig.version=v1.2.0
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

// Commit returns the injected commit, falling back to the VCS revision the
// Go toolchain stamped into the binary.
func Commit() string {
	if commit != "unknown" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return commit
}

// VersionInfo is the body of the /version endpoint.
func VersionInfo() map[string]string {
	return map[string]string{
		"version":    Version(),
		"commit":     Commit(),
		"go_version": runtime.Version(),
	}
}
