// Package pipeline drives tiles through download and conversion with
// independently bounded worker pools joined by a backpressure queue.
package pipeline

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terracol/terracol/internal/columnar"
	"github.com/terracol/terracol/internal/download"
	"github.com/terracol/terracol/internal/model"
	"github.com/terracol/terracol/internal/raster"
)

// ErrTilesFailed is returned by Run when the region completed but one or
// more tiles ended failed. Callers map it to a non-zero exit status.
var ErrTilesFailed = eris.New("pipeline: some tiles failed")

// Downloader ensures a tile's raw raster exists locally.
type Downloader interface {
	Ensure(ctx context.Context, tile model.Tile) (path string, cached bool, err error)
}

// Converter turns a tile's raw raster into its columnar output file.
type Converter interface {
	Convert(ctx context.Context, tile model.Tile, rawPath string) (rows int64, err error)
}

// Options tunes the pipeline's concurrency and behavior.
type Options struct {
	// OutDir is where converted tiles live; used for the resume check.
	OutDir string
	// RawDir is where raw tiles live; used only to report cache state on
	// the resume path. Empty disables the check.
	RawDir string
	// DownloadConcurrency bounds the network pool. Default 16.
	DownloadConcurrency int
	// ConvertConcurrency bounds the decode+write pool. Default 2.
	ConvertConcurrency int
	// QueueSize bounds the downloaded-but-unconverted buffer. Default 4.
	QueueSize int
	// DownloadOnly stops after the download stage.
	DownloadOnly bool
	// Limit restricts the run to the first N tiles of the region (0 = all).
	Limit int
	// OnOutcome, if set, observes every recorded tile outcome.
	OnOutcome func(model.Outcome)
}

func (o Options) withDefaults() Options {
	if o.DownloadConcurrency <= 0 {
		o.DownloadConcurrency = 16
	}
	if o.ConvertConcurrency <= 0 {
		o.ConvertConcurrency = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4
	}
	return o
}

// Pipeline converts a region tile-by-tile. Failures are isolated per
// tile; only systemic conditions (storage exhaustion, cancellation) stop
// the run.
type Pipeline struct {
	dl   Downloader
	cv   Converter
	opts Options
}

// New assembles a pipeline from its two stages.
func New(dl Downloader, cv Converter, opts Options) *Pipeline {
	return &Pipeline{dl: dl, cv: cv, opts: opts.withDefaults()}
}

// queued is a tile that finished the download stage.
type queued struct {
	tile      model.Tile
	rawPath   string
	cachedRaw bool
	started   time.Time
}

// Run processes every tile of the region. The returned report is complete
// even when err is non-nil. err is ErrTilesFailed for per-tile failures,
// or the underlying cause for a fatal abort.
func (p *Pipeline) Run(ctx context.Context, region string, tiles []model.Tile) (*model.Report, error) {
	if p.opts.Limit > 0 && len(tiles) > p.opts.Limit {
		tiles = tiles[:p.opts.Limit]
	}

	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("region", region),
	)
	log.Info("starting run",
		zap.Int("tiles", len(tiles)),
		zap.Int("download_concurrency", p.opts.DownloadConcurrency),
		zap.Int("convert_concurrency", p.opts.ConvertConcurrency),
		zap.Bool("download_only", p.opts.DownloadOnly),
	)

	report := model.NewReport(region, len(tiles))
	queue := make(chan queued, p.opts.QueueSize)

	// A fatal condition in either stage must stop the other stage from
	// issuing new work, not just its own pool. Both pools descend from
	// runCtx, and the fatal branches cancel it directly.
	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	g, gctx := errgroup.WithContext(runCtx)

	// Download stage: high-concurrency network pool feeding the queue.
	g.Go(func() error {
		defer close(queue)

		dg, dgctx := errgroup.WithContext(gctx)
		dg.SetLimit(p.opts.DownloadConcurrency)
		for _, tile := range tiles {
			dg.Go(func() error {
				return p.downloadOne(dgctx, tile, queue, report, abort)
			})
		}
		return dg.Wait()
	})

	// Convert stage: CPU/disk-bound pool draining the queue.
	g.Go(func() error {
		cg, cgctx := errgroup.WithContext(gctx)
		cg.SetLimit(p.opts.ConvertConcurrency)
		for item := range queue {
			cg.Go(func() error {
				return p.convertOne(cgctx, item, report, abort)
			})
		}
		return cg.Wait()
	})

	err := g.Wait()
	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		// The workers racing to shut down may surface a bare cancellation
		// before the fatal error that triggered it; prefer the cause.
		err = cause
	}

	log.Info("run finished",
		zap.Int("converted", report.Converted()),
		zap.Int("failed", report.FailedCount()),
		zap.Int64("rows", report.Rows()),
	)

	if err != nil {
		return report, err
	}
	if report.FailedCount() > 0 {
		return report, ErrTilesFailed
	}
	return report, nil
}

func (p *Pipeline) downloadOne(ctx context.Context, tile model.Tile, queue chan<- queued, report *model.Report, abort context.CancelCauseFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()

	// Resume: a valid output file means the whole tile is done.
	if !p.opts.DownloadOnly && columnar.Valid(tile.OutputPath(p.opts.OutDir)) {
		zap.L().Debug("output already present, skipping tile",
			zap.String("component", "pipeline"),
			zap.String("tile", tile.ID),
		)
		cachedRaw := p.opts.RawDir != "" &&
			download.ValidRaw(tile.RawPath(p.opts.RawDir), download.VerifyNone)
		p.record(report, model.Outcome{
			Tile:      tile.ID,
			State:     model.TileStateConverted,
			CachedRaw: cachedRaw,
			CachedOut: true,
			Duration:  time.Since(started),
		})
		return nil
	}

	rawPath, cached, err := p.dl.Ensure(ctx, tile)
	if err != nil {
		if fatal := fatalCause(ctx, err); fatal != nil {
			abort(fatal)
			return fatal
		}
		p.record(report, model.Outcome{
			Tile:     tile.ID,
			State:    model.TileStateFailed,
			ErrKind:  downloadErrKind(err),
			ErrMsg:   err.Error(),
			Duration: time.Since(started),
		})
		return nil
	}

	if p.opts.DownloadOnly {
		p.record(report, model.Outcome{
			Tile:      tile.ID,
			State:     model.TileStateDownloaded,
			CachedRaw: cached,
			Duration:  time.Since(started),
		})
		return nil
	}

	select {
	case queue <- queued{tile: tile, rawPath: rawPath, cachedRaw: cached, started: started}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) convertOne(ctx context.Context, item queued, report *model.Report, abort context.CancelCauseFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows, err := p.cv.Convert(ctx, item.tile, item.rawPath)
	if err != nil {
		if fatal := fatalCause(ctx, err); fatal != nil {
			abort(fatal)
			return fatal
		}
		// The raw file is kept for inspection on decode failures.
		p.record(report, model.Outcome{
			Tile:      item.tile.ID,
			State:     model.TileStateFailed,
			ErrKind:   convertErrKind(err),
			ErrMsg:    err.Error(),
			CachedRaw: item.cachedRaw,
			Duration:  time.Since(item.started),
		})
		return nil
	}

	p.record(report, model.Outcome{
		Tile:      item.tile.ID,
		State:     model.TileStateConverted,
		Rows:      rows,
		CachedRaw: item.cachedRaw,
		Duration:  time.Since(item.started),
	})
	return nil
}

func (p *Pipeline) record(report *model.Report, o model.Outcome) {
	report.Record(o)
	if o.State == model.TileStateFailed {
		zap.L().Warn("tile failed",
			zap.String("component", "pipeline"),
			zap.String("tile", o.Tile),
			zap.String("err_kind", string(o.ErrKind)),
			zap.String("err", o.ErrMsg),
		)
	}
	if p.opts.OnOutcome != nil {
		p.opts.OnOutcome(o)
	}
}

// fatalCause returns a non-nil error when the failure is systemic rather
// than tile-local: the run context was canceled, or local storage is
// exhausted (every further tile would fail identically).
func fatalCause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, syscall.ENOSPC) {
		return eris.Wrap(err, "pipeline: storage exhausted")
	}
	return nil
}

func downloadErrKind(err error) model.ErrorKind {
	if de, ok := download.AsError(err); ok {
		return de.Kind.ModelKind()
	}
	return model.ErrKindTransient
}

func convertErrKind(err error) model.ErrorKind {
	switch {
	case errors.Is(err, raster.ErrCorrupt):
		return model.ErrKindCorrupt
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return model.ErrKindUnsupported
	default:
		return model.ErrKindIO
	}
}
