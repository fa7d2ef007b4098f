// Package version reports the build identity of the pubsub binary.
package version

import "runtime/debug"

// Overridable with -ldflags "-X"; otherwise filled from the embedded build info.
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(info)
	}
}

// fromBuildInfo fills any field still at its default from the module and VCS stamps.
func fromBuildInfo(info *debug.BuildInfo) {
	if v := info.Main.Version; v != "" && v != "(devel)" && Version == "0.1.0" {
		Version = v
	}

	modified := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "dev" && s.Value != "" {
				GitCommit = s.Value
				if len(GitCommit) > 12 {
					GitCommit = GitCommit[:12]
				}
			}
		case "vcs.time":
			if BuildDate == "unknown" && s.Value != "" {
				BuildDate = s.Value
			}
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if modified && GitCommit != "dev" {
		GitCommit += "-dirty"
	}
}

// String returns a human-readable version string.
func String() string {
	return "pubsub " + Version + " (" + GitCommit + ", " + BuildDate + ")"
}
