// Package version holds build information injected at link time.
package version

import (
	"fmt"
	"runtime"

	"github.com/aatumaykin/agentpool/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = constants.DefaultGoVersion
)

// SetInfo overrides the build information; empty values are ignored.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// Info returns the build information as printable lines.
func Info() string {
	goVersion := GoVersion
	if goVersion == constants.DefaultGoVersion {
		goVersion = runtime.Version()
	}
	return fmt.Sprintf("agentpool - agent task scheduler\nVersion: %s\nBuild Time: %s\nGit Commit: %s\nGo Version: %s\n",
		Version, BuildTime, GitCommit, goVersion)
}
