package main

import (
	"fmt"
	"os"

	"github.com/feelus/cns-server/cmd/cns-server/commands"

	// Respect container CPU quotas when sizing GOMAXPROCS.
	_ "go.uber.org/automaxprocs"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
