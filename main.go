package main

import (
	"os"

	"github.com/sflowg/blockrunner/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
