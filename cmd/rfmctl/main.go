// Package main is the entry point for the rfmctl CLI.
package main

import (
	"os"

	"github.com/ignite/segment-insights/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
