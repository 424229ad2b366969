// Package raster decodes single-band elevation GeoTIFFs into lazy
// sequences of geocoded samples. Decoding goes through GDAL (godal), so
// memory stays bounded regardless of tile size: samples are pulled one
// raster row at a time.
package raster

import (
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrCorrupt means the file could not be opened or its georeferencing
	// is missing or malformed.
	ErrCorrupt = eris.New("raster: corrupt file")
	// ErrUnsupportedFormat means the raster is not a single-band integer
	// elevation layout.
	ErrUnsupportedFormat = eris.New("raster: unsupported format")
)

var registerOnce sync.Once

// Reader decodes one elevation raster. Not safe for concurrent use; each
// tile gets its own Reader.
type Reader struct {
	ds     *godal.Dataset
	band   godal.Band
	gt     [6]float64
	width  int
	height int

	nodata    float64
	hasNodata bool
}

// Open opens the raster at path and validates its layout: exactly one
// band of an integer type, with a usable geotransform.
func Open(path string) (*Reader, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "raster: open %s: %v", path, err)
	}

	st := ds.Structure()
	if st.NBands != 1 {
		_ = ds.Close()
		return nil, eris.Wrapf(ErrUnsupportedFormat, "raster: %s has %d bands, want 1", path, st.NBands)
	}

	band := ds.Bands()[0]
	switch band.Structure().DataType {
	case godal.Byte, godal.Int16, godal.UInt16, godal.Int32:
	default:
		dt := band.Structure().DataType
		_ = ds.Close()
		return nil, eris.Wrapf(ErrUnsupportedFormat, "raster: %s band type %s is not integer", path, dt)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		_ = ds.Close()
		return nil, eris.Wrapf(ErrCorrupt, "raster: %s has no geotransform: %v", path, err)
	}

	nodata, hasNodata := band.NoData()
	zap.L().Debug("opened raster",
		zap.String("component", "raster"),
		zap.String("path", path),
		zap.Int("width", st.SizeX),
		zap.Int("height", st.SizeY),
		zap.Bool("has_nodata", hasNodata),
	)

	return &Reader{
		ds:        ds,
		band:      band,
		gt:        gt,
		width:     st.SizeX,
		height:    st.SizeY,
		nodata:    nodata,
		hasNodata: hasNodata,
	}, nil
}

// Width returns the raster width in pixels.
func (r *Reader) Width() int { return r.width }

// Height returns the raster height in pixels.
func (r *Reader) Height() int { return r.height }

// Close releases the underlying dataset. Iterators must not be used
// afterwards.
func (r *Reader) Close() error {
	if err := r.ds.Close(); err != nil {
		return eris.Wrap(err, "raster: close dataset")
	}
	return nil
}
