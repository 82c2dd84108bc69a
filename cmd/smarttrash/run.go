package main

import (
	"github.com/spf13/cobra"

	"github.com/smarttrash/smarttrash/internal/worker"
)

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Capture and analyze an item each time Enter is pressed",
		Long: `Runs the pipeline interactively without the HTTP API. Each Enter press
captures a frame, labels it, analyzes it and stores the item. Type q or
press Ctrl+C to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return worker.Interactive(cmd.Context(), a.pipeline, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
