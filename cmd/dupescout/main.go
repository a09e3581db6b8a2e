package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dupescout",
		Short:   "Find probable duplicate files by name similarity and size",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newFindCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
