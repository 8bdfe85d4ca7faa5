// Package main provides the empdep command line interface.
package main

import (
	"os"

	"github.com/beacon-epi/empdep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
