package pipeline

import (
	"context"

	"github.com/terracol/terracol/internal/columnar"
	"github.com/terracol/terracol/internal/model"
	"github.com/terracol/terracol/internal/raster"
)

// RasterConverter is the production Converter: GDAL decode feeding the
// Parquet writer, one tile at a time.
type RasterConverter struct {
	writer *columnar.Writer
}

// NewRasterConverter creates a converter writing Parquet files under dir.
func NewRasterConverter(dir string, batchRows int) (*RasterConverter, error) {
	w, err := columnar.NewWriter(dir, batchRows)
	if err != nil {
		return nil, err
	}
	return &RasterConverter{writer: w}, nil
}

// Convert decodes the raw raster at rawPath and writes the tile's output
// file. The raw file is left in place regardless of outcome.
func (c *RasterConverter) Convert(ctx context.Context, tile model.Tile, rawPath string) (int64, error) {
	r, err := raster.Open(rawPath)
	if err != nil {
		return 0, err
	}
	defer r.Close() //nolint:errcheck

	_, rows, err := c.writer.Write(ctx, tile, r.Samples())
	return rows, err
}
