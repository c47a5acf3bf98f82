// Package main is the entrypoint for the clickctl operator tool.
package main

import (
	"os"

	"github.com/clicktrail/clicktrail/internal/cli"
)

var version = "dev"

func main() {
	// go-flags has already printed the error.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
