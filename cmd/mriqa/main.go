package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/phantomlab/mriqa/cmd/mriqa/cli"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := fang.Execute(context.Background(), cli.RootCmd()); err != nil {
		os.Exit(1)
	}
}
