package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terracol/terracol/internal/catalog"
	"github.com/terracol/terracol/internal/columnar"
	"github.com/terracol/terracol/internal/download"
	"github.com/terracol/terracol/internal/model"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status <region>",
	Short: "Show per-tile progress for a region",
	Long:  "Inspects the raw and output directories and reports how many of the region's tiles are pending, downloaded, or converted. State is read from the files on disk, not from any database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		cat := catalog.New(cfg.Source.BaseURL)
		if cfg.RegionsFile != "" {
			if err := cat.LoadFile(cfg.RegionsFile); err != nil {
				return eris.Wrap(err, "load regions file")
			}
		}
		tiles, err := cat.Resolve(args[0])
		if err != nil {
			return err
		}

		formatStatus(os.Stdout, args[0], tiles, statusVerbose)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list every tile with its state")
	rootCmd.AddCommand(statusCmd)
}

// tileState reads a tile's progress off the filesystem.
func tileState(tile model.Tile) model.TileState {
	if columnar.Valid(tile.OutputPath(cfg.OutDir)) {
		return model.TileStateConverted
	}
	if download.ValidRaw(tile.RawPath(cfg.RawDir), cfg.Download.Verify) {
		return model.TileStateDownloaded
	}
	return model.TileStatePending
}

func formatStatus(w io.Writer, region string, tiles []model.Tile, verbose bool) {
	counts := map[model.TileState]int{}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if verbose {
		fmt.Fprintln(tw, "TILE\tSTATE")
	}
	for _, tile := range tiles {
		state := tileState(tile)
		counts[state]++
		if verbose {
			fmt.Fprintf(tw, "%s\t%s\n", tile.ID, state)
		}
	}
	if verbose {
		fmt.Fprintln(tw)
	}

	fmt.Fprintf(tw, "region\t%s\n", region)
	fmt.Fprintf(tw, "tiles\t%d\n", len(tiles))
	fmt.Fprintf(tw, "converted\t%d\n", counts[model.TileStateConverted])
	fmt.Fprintf(tw, "downloaded\t%d\n", counts[model.TileStateDownloaded])
	fmt.Fprintf(tw, "pending\t%d\n", counts[model.TileStatePending])
	tw.Flush()
}
