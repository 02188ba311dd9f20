package main

import (
	"fmt"
	"os"

	"github.com/aatumaykin/agentpool/internal/constants"
	"github.com/aatumaykin/agentpool/internal/version"
)

// Set via -ldflags "-X main.Version=...".
var (
	Version   string
	BuildTime string
	GitCommit string
	GoVersion string
)

func init() {
	version.SetInfo(Version, BuildTime, GitCommit, GoVersion)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, constants.MsgFatal, err)
		os.Exit(1)
	}
}
