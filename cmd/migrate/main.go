// Command migrate applies the catalog schema. It is the same command as
// "tally migrate", packaged alone for deployment images without the CLI.
package main

import (
	"fmt"
	"os"

	"github.com/JaimeStill/tally/internal/cli"
)

func main() {
	cmd := cli.NewMigrateCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
