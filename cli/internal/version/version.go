package version

import (
	"fmt"
	"runtime"

	"github.com/satishbabariya/dbre/snapshot"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version        string
	BuildDate      string
	GitCommit      string
	SnapshotFormat string
	GoVersion      string
	Platform       string
}

// Get returns version information
func Get() Info {
	return Info{
		Version:        Version,
		BuildDate:      BuildDate,
		GitCommit:      GitCommit,
		SnapshotFormat: snapshot.FormatVersion,
		GoVersion:      runtime.Version(),
		Platform:       fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("dbre version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	return fmt.Sprintf(`dbre version %s
Build Date: %s
Git Commit: %s
Snapshot Format: %s
Platform: %s
Go Version: %s`, i.Version, i.BuildDate, i.GitCommit, i.SnapshotFormat, i.Platform, i.GoVersion)
}
