// Package buildinfo exposes version metadata stamped in at build time via
// -ldflags, surfaced through nvlockd's version subcommand and the
// scheduler's startup log line.
package buildinfo

import (
	"fmt"
	"runtime"
)

// Build-time variables, overridden via -ldflags "-X ...=...".
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info is the resolved, runtime-enriched build metadata.
type Info struct {
	CommitHash string
	BuildTime  string
	Version    string
	GoVersion  string
	Platform   string
}

// Get returns the current build information.
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("nvlockd %s (commit %s, built %s, %s)", i.Version, i.CommitHash, i.BuildTime, i.GoVersion)
}
