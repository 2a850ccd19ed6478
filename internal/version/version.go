// Package version holds build metadata injected with -ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/pillarsite/internal/version.Version=v1.2.0".
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String renders the metadata for `pillarsite version`.
func String() string {
	return fmt.Sprintf("pillarsite %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
