// netsweep is a concurrent network scan engine. It drives an external scan
// tool across bounded work units and merges the results into a single host
// inventory. All functionality is exposed through the CLI command tree.
package main

import (
	"github.com/anstrom/netsweep/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
