package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terracol/terracol/internal/journal"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs from the journal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Journal.Path == "" {
			return eris.New("runs: journal.path is not configured")
		}

		jnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return eris.Wrap(err, "open journal")
		}
		defer jnl.Close() //nolint:errcheck

		runs, err := jnl.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func formatRuns(w io.Writer, runs []journal.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREGION\tSTARTED\tSTATUS\tTILES\tCONVERTED\tFAILED\tROWS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			shortID(r.ID), r.Region, r.Started.Local().Format(time.DateTime),
			r.Status, r.Tiles, r.Converted, r.Failed, r.Rows)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
