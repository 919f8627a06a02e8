package main

import (
	"os"

	"github.com/babarot/kura/internal/cli"
)

// set by goreleaser
var (
	version   = "unset"
	revision  = "unset"
	buildDate = "unknown"
)

func main() {
	if err := cli.Run(cli.Version{
		AppName:   "kura",
		Version:   version,
		Revision:  revision,
		BuildDate: buildDate,
	}); err != nil {
		os.Exit(1)
	}
}
