package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/terracol/terracol/internal/catalog"
	"github.com/terracol/terracol/internal/download"
	"github.com/terracol/terracol/internal/journal"
	"github.com/terracol/terracol/internal/model"
	"github.com/terracol/terracol/internal/pipeline"
	"github.com/terracol/terracol/internal/resilience"
)

var (
	convertRawDir string
	convertOutDir string
	convertLimit  int
)

var convertCmd = &cobra.Command{
	Use:   "convert <region>",
	Short: "Download and convert a region's tiles to Parquet",
	Long:  "Downloads every tile of the region that is not already on disk and converts each into a Parquet file. Tiles whose output already exists are skipped, so rerunning after an interruption picks up where the previous run stopped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runRegion(ctx, args[0], false)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertRawDir, "raw-dir", "", "directory for raw GeoTIFFs (default from config)")
	convertCmd.Flags().StringVar(&convertOutDir, "out-dir", "", "directory for Parquet output (default from config)")
	convertCmd.Flags().IntVar(&convertLimit, "limit", 0, "process only the first N tiles of the region")
	rootCmd.AddCommand(convertCmd)
}

// runRegion resolves the region and drives the pipeline over its tiles.
// Shared by convert and fetch; fetch sets downloadOnly.
func runRegion(ctx context.Context, region string, downloadOnly bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rawDir, outDir := cfg.RawDir, cfg.OutDir
	if convertRawDir != "" {
		rawDir = convertRawDir
	}
	if convertOutDir != "" {
		outDir = convertOutDir
	}

	cat := catalog.New(cfg.Source.BaseURL)
	if cfg.RegionsFile != "" {
		if err := cat.LoadFile(cfg.RegionsFile); err != nil {
			return eris.Wrap(err, "load regions file")
		}
	}
	tiles, err := cat.Resolve(region)
	if err != nil {
		return err
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Download.BreakerThreshold,
		ShouldTrip:       resilience.IsTransient,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("source circuit state changed",
				zap.String("component", "download"),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	client := download.NewClient(download.ClientOptions{
		UserAgent: cfg.Download.UserAgent,
		Timeout:   cfg.Download.Timeout,
		RateLimit: rate.Limit(cfg.Download.RateLimit),
		RateBurst: cfg.Download.RateBurst,
		Breaker:   breaker,
	})
	manager, err := download.NewManager(client, download.ManagerOptions{
		Dir:    rawDir,
		Verify: cfg.Download.Verify,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Download.MaxAttempts,
			InitialBackoff: cfg.Download.InitialBackoff,
			MaxBackoff:     cfg.Download.MaxBackoff,
		},
	})
	if err != nil {
		return err
	}

	converter, err := pipeline.NewRasterConverter(outDir, cfg.Convert.BatchRows)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		OutDir:              outDir,
		RawDir:              rawDir,
		DownloadConcurrency: cfg.Download.Concurrency,
		ConvertConcurrency:  cfg.Convert.Concurrency,
		QueueSize:           cfg.Convert.QueueSize,
		DownloadOnly:        downloadOnly,
		Limit:               convertLimit,
	}

	// The journal is reporting history only; resumability comes from the
	// files on disk.
	var jnl *journal.Journal
	var runID string
	if cfg.Journal.Path != "" {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return eris.Wrap(err, "open journal")
		}
		defer jnl.Close() //nolint:errcheck

		n := len(tiles)
		if opts.Limit > 0 && opts.Limit < n {
			n = opts.Limit
		}
		runID, err = jnl.StartRun(ctx, region, n)
		if err != nil {
			return eris.Wrap(err, "journal start run")
		}
		opts.OnOutcome = func(o model.Outcome) {
			jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := jnl.RecordOutcome(jctx, runID, o); err != nil {
				zap.L().Warn("journal record failed",
					zap.String("tile", o.Tile), zap.Error(err))
			}
		}
	}

	p := pipeline.New(manager, converter, opts)
	report, runErr := p.Run(ctx, region, tiles)

	if jnl != nil {
		jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jnl.FinishRun(jctx, runID, report); err != nil {
			zap.L().Warn("journal finish failed", zap.Error(err))
		}
	}

	pipeline.PrintSummary(os.Stdout, report)
	return runErr
}
