// Package main is the entry point for the chimebox device daemon and
// its companion tools.
//
// Usage:
//
//	chimebox [flags] <command> [args]
//
// Commands:
//
//	serve    - run the audio gateway
//	send     - upload an audio file to a running gateway
//	version  - show version information
package main

import (
	"fmt"
	"os"

	"github.com/chimebox/chimebox/cmd/chimebox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
