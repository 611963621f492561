package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "rivalis",
		Short:   "Rivalis — resilient LLM competitor-analysis pipeline",
		Version: version,
	}

	root.AddCommand(
		newInitCmd(),
		newCheckpointCmd(),
		newCostCmd(),
		newProvidersCmd(),
		newFetchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
