// Command truthengine runs the deterministic pricing core's run, replay,
// and validate subcommands over a newline-delimited JSON event log.
package main

import (
	"fmt"
	"os"

	"github.com/donizo-labs/truthengine/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
