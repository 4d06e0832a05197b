// Command dop evaluates procedural node graph documents.
//
// Usage:
//
//	dop <command> [flags]
//
// Commands: run, validate, ops, trace, test
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dopgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
