// ./main.go
package main

import (
	"github.com/kitsched/autopunch/cmd"
)

// main is the entry point for the autopunch CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
