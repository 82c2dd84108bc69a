package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smarttrash/smarttrash/internal/export"
	"github.com/smarttrash/smarttrash/internal/model"
	"github.com/smarttrash/smarttrash/internal/stats"
)

func newStatsCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [day|week|month|year|all]",
		Short: "Print statistics for a period",
		Example: `  # This week's totals as YAML
  smarttrash stats week

  # Everything, including the five most recent items, as JSON
  smarttrash stats all --json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"day", "today", "week", "month", "year", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			period := "day"
			if len(args) == 1 {
				period = args[0]
			}

			s, err := openStore(c.cfg)
			if err != nil {
				return err
			}
			result, err := stats.New(s, nil).Compute(cmd.Context(), period)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return writeYAML(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")

	return cmd
}

func newSearchCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "List items whose detected objects mention a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(c.cfg)
			if err != nil {
				return err
			}
			items, err := s.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				if items == nil {
					items = []model.Item{}
				}
				return writeJSON(cmd.OutOrStdout(), items)
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a list")

	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.parquet|file.jsonl>",
		Short: "Export the item history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(c.cfg)
			if err != nil {
				return err
			}
			items, err := s.Items(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.WriteFile(args[0], items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d items to %s\n", len(items), args[0])
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printItems(w io.Writer, items []model.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no matching items")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "#%-4d %s  %-12s %s\n",
			it.ID,
			it.Timestamp.Format("2006-01-02 15:04"),
			model.BucketCategory(it.WasteCategory),
			strings.Join(it.DetectedObjects, ", "),
		)
	}
}
