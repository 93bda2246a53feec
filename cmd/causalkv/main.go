// Command causalkv runs and talks to nodes of a causally consistent
// replicated key-value store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "causalkv",
		Short:         "Causally consistent replicated key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newPutCommand(),
		newGetCommand(),
		newStatsCommand(),
		newDemoCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
