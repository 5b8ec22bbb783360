package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaults(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "dev", info.CommitHash)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestGetReflectsLdflagsOverrides(t *testing.T) {
	origVersion, origCommit, origBuild := Version, CommitHash, BuildTime
	defer func() { Version, CommitHash, BuildTime = origVersion, origCommit, origBuild }()

	Version = "1.2.3"
	CommitHash = "abc123"
	BuildTime = "2026-07-29T00:00:00Z"

	info := Get()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.CommitHash)
	assert.Equal(t, "2026-07-29T00:00:00Z", info.BuildTime)
}

func TestStringIncludesVersionAndCommit(t *testing.T) {
	info := Info{Version: "1.0.0", CommitHash: "deadbeef", BuildTime: "now", GoVersion: "go1.22"}
	s := info.String()
	assert.Contains(t, s, "1.0.0")
	assert.Contains(t, s, "deadbeef")
}
