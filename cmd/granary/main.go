// Package main provides the entry point for granary.
//
// granary is the command-line management tool for the Granary save
// store: saving, loading, listing, exporting, and inspecting stored
// game snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/elacour/granary/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
