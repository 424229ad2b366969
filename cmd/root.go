package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terracol/terracol/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "terracol",
	Short: "Elevation tile acquisition and conversion pipeline",
	Long:  "Downloads AW3D30 GeoTIFF elevation tiles for a region and converts them into per-tile Parquet files of (lat, lon, elevation) rows. Interrupted runs resume from the files already on disk.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
