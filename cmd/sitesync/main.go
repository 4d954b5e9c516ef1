package main

import (
	"os"

	"evalgo.org/sitesync/internal/commands"
	"evalgo.org/sitesync/internal/version"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	version.GitCommit = GitCommit

	// Execute reports the error itself
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
