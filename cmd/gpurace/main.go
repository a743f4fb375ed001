// Package main is the entry point for the gpurace CLI.
//
// gpurace provisions a GPU machine by racing several offers against each
// other: candidates launch in rounds, the first one to accept a connection
// wins, and every loser is torn down.
//
// Commands: race, offers, validate, cleanup, version.
//
// For detailed usage information, run:
//
//	gpurace --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/gpurace/cmd/gpurace/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
