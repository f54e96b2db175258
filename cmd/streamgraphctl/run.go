package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxgraph/streamgraph"
	"github.com/spf13/cobra"
)

var (
	runEntry   string
	runValue   string
	runTimeout time.Duration

	runCmd = &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Compile a pipeline config and run it once",
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
			_, runner, err := g.Compile()
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			if runEntry == "" {
				return fmt.Errorf("streamgraphctl: --entry is required")
			}

			var spec streamgraph.InputSpecifier
			if runValue != "" {
				spec = streamgraph.ArgSingle(streamgraph.NewValue("arg", runValue))
			}

			var wg sync.WaitGroup
			wg.Add(1)

			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			handle, err := runner.Run(ctx, streamgraph.RunParams{
				Entry:      runEntry,
				Args:       spec,
				OnComplete: wg.Done,
			})
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			wg.Wait()
			runner.Wait()

			fmt.Printf("invocation %s (run id %s) finished\n", handle.InvocationID, handle.RunID)
			if err := runner.AssertClean(); err != nil {
				return err
			}
			return nil
		},
	}
)

func init() {
	runCmd.Flags().StringVar(&runEntry, "entry", "", "name of the component to invoke")
	runCmd.Flags().StringVar(&runValue, "value", "", "string value to pack as the entry's single Primary input")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "deadline for the whole invocation")
}
