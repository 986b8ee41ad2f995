// Package main is the entry point for the columnci CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/columnci/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
