package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <region>",
	Short: "Download a region's raw tiles without converting",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runRegion(ctx, args[0], true)
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	fetchCmd.Flags().StringVar(&convertRawDir, "raw-dir", "", "directory for raw GeoTIFFs (default from config)")
	fetchCmd.Flags().IntVar(&convertLimit, "limit", 0, "fetch only the first N tiles of the region")
	rootCmd.AddCommand(fetchCmd)
}
