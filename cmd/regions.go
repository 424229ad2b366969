package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terracol/terracol/internal/catalog"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List known regions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat := catalog.New(cfg.Source.BaseURL)
		if cfg.RegionsFile != "" {
			if err := cat.LoadFile(cfg.RegionsFile); err != nil {
				return eris.Wrap(err, "load regions file")
			}
		}

		formatRegions(os.Stdout, cat.Regions())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}

func formatRegions(w io.Writer, regions []catalog.Region) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBOUNDS\tTILES")
	for _, r := range regions {
		fmt.Fprintf(tw, "%s\t%s..%s %s..%s\t%d\n",
			r.Name, latLabel(r.South), latLabel(r.North),
			lonLabel(r.West), lonLabel(r.East), r.TileCount())
	}
	tw.Flush()
}

func latLabel(deg int) string {
	if deg < 0 {
		return fmt.Sprintf("%dS", -deg)
	}
	return fmt.Sprintf("%dN", deg)
}

func lonLabel(deg int) string {
	if deg < 0 {
		return fmt.Sprintf("%dW", -deg)
	}
	return fmt.Sprintf("%dE", deg)
}
