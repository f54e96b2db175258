package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "streamgraphctl",
		Short: "Load, validate, and run a streamgraph pipeline config",
		Long: `streamgraphctl is a thin boundary CLI around the streamgraph engine.

It loads a YAML pipeline config, wires it into a Graph through
the engine's built-in component factories, compiles it, and either
reports validation errors or runs the compiled pipeline once against a
CLI-supplied entry value.`,
		Version: version,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
}
