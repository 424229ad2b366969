// Package columnar encodes geocoded elevation samples as Parquet, one
// file per tile, committed atomically.
package columnar

import (
	"context"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terracol/terracol/internal/model"
)

// partSuffix marks in-flight output files, mirroring the download side:
// the rename to the final path is the sole commit point.
const partSuffix = ".part"

// DefaultBatchRows is the number of samples buffered per write batch. An
// AW3D30 tile is 3600×3600 pixels, so a full tile flushes ~198 batches.
const DefaultBatchRows = 65536

// Row is the output schema: elevation is optional so nodata pixels become
// nulls instead of a fake numeric value.
type Row struct {
	Latitude  float64 `parquet:"latitude"`
	Longitude float64 `parquet:"longitude"`
	Elevation *int32  `parquet:"elevation,optional"`
}

// Source is a forward-only sequence of geocoded samples, consumed exactly
// once.
type Source interface {
	Next() bool
	Sample() model.Sample
	Err() error
}

// WriteError is a storage failure while producing a tile's output file.
type WriteError struct {
	Tile string
	Err  error
}

func (e *WriteError) Error() string {
	return "columnar: write " + e.Tile + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer produces per-tile Parquet files under a fixed directory.
type Writer struct {
	dir       string
	batchRows int
}

// NewWriter creates a writer rooted at dir, creating it if missing.
func NewWriter(dir string, batchRows int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "columnar: create output dir")
	}
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}
	return &Writer{dir: dir, batchRows: batchRows}, nil
}

// Write consumes src once and writes the tile's Parquet file, returning
// its path and the number of rows written. The file appears at its final
// path only after all batches are flushed and the file is closed cleanly.
func (w *Writer) Write(ctx context.Context, tile model.Tile, src Source) (string, int64, error) {
	path := tile.OutputPath(w.dir)
	tmp := path + partSuffix

	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, &WriteError{Tile: tile.ID, Err: eris.Wrap(err, "create temp file")}
	}

	pw := parquet.NewGenericWriter[Row](f, parquet.Compression(&parquet.Zstd))

	var rows int64
	batch := make([]Row, 0, w.batchRows)
	fail := func(cause error) (string, int64, error) {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", 0, &WriteError{Tile: tile.ID, Err: cause}
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return eris.Wrap(err, "write batch")
		}
		rows += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for src.Next() {
		s := src.Sample()
		row := Row{Latitude: s.Lat, Longitude: s.Lon}
		if !s.NoData {
			elev := s.Elevation
			row.Elevation = &elev
		}
		batch = append(batch, row)

		if len(batch) >= w.batchRows {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := flush(); err != nil {
				return fail(err)
			}
		}
	}
	if err := src.Err(); err != nil {
		return fail(err)
	}
	if err := flush(); err != nil {
		return fail(err)
	}

	if err := pw.Close(); err != nil {
		return fail(eris.Wrap(err, "close parquet writer"))
	}
	if err := f.Sync(); err != nil {
		return fail(eris.Wrap(err, "sync temp file"))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", 0, &WriteError{Tile: tile.ID, Err: eris.Wrap(err, "close temp file")}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", 0, &WriteError{Tile: tile.ID, Err: eris.Wrap(err, "commit file")}
	}

	zap.L().Debug("wrote tile output",
		zap.String("component", "columnar"),
		zap.String("tile", tile.ID),
		zap.Int64("rows", rows),
	)
	return path, rows, nil
}
