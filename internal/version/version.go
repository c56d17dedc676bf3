// Package version holds build information set via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("hostenroll %s (%s) built at %s with %s on %s/%s",
		Version, GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies hostenroll in outgoing requests.
func UserAgent() string {
	return "hostenroll/" + Version
}
