package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset(t *testing.T) {
	v, c, d := Version, GitCommit, BuildDate
	Version, GitCommit, BuildDate = "0.1.0", "dev", "unknown"
	t.Cleanup(func() { Version, GitCommit, BuildDate = v, c, d })
}

func TestFromBuildInfo(t *testing.T) {
	reset(t)
	fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-19T08:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "v1.2.3", Version)
	assert.Equal(t, "0123456789ab-dirty", GitCommit)
	assert.Equal(t, "2026-10-19T08:00:00Z", BuildDate)
	assert.Equal(t, "pubsub v1.2.3 (0123456789ab-dirty, 2026-10-19T08:00:00Z)", String())
}

func TestFromBuildInfo_DevelKeepsDefaults(t *testing.T) {
	reset(t)
	fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	assert.Equal(t, "pubsub 0.1.0 (dev, unknown)", String())
}

func TestFromBuildInfo_LinkerValuesWin(t *testing.T) {
	reset(t)
	Version, GitCommit = "v9.9.9", "release"
	fromBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "v1.0.0"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}},
	})

	assert.Equal(t, "v9.9.9", Version)
	assert.Equal(t, "release", GitCommit)
}

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "pubsub "))
	assert.Contains(t, s, Version)
	assert.Contains(t, s, GitCommit)
	assert.Contains(t, s, BuildDate)
}
