package main

import (
	"fmt"
	"os"

	"github.com/fluxgraph/streamgraph"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Load a pipeline config and compile it without running anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0])
		if err != nil {
			return err
		}
		g, err := streamgraph.BuildGraph(cfg, streamgraph.DefaultRegistry())
		if err != nil {
			return fmt.Errorf("build graph: %w", err)
		}
		resolver, runner, err := g.Compile()
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		_ = resolver
		fmt.Fprintf(os.Stdout, "ok: %d component(s) compiled\n", len(runner.Components()))
		for _, name := range runner.Components() {
			fmt.Fprintf(os.Stdout, "  - %s\n", name)
		}
		return nil
	},
}

func loadConfig(path string) (*streamgraph.PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := streamgraph.LoadPipelineConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
