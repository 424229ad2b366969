package raster

import (
	"github.com/rotisserie/eris"

	"github.com/terracol/terracol/internal/model"
)

// Samples returns a fresh forward-only iterator over every pixel of the
// raster in row-major order (top-to-bottom, left-to-right). Each call
// starts a new pass over the file; a consumed iterator cannot be rewound.
func (r *Reader) Samples() *Iterator {
	return &Iterator{
		r:   r,
		buf: make([]int32, r.width),
	}
}

// Iterator pulls geocoded samples one pixel at a time, reading the
// underlying raster a single row per fetch.
type Iterator struct {
	r    *Reader
	buf  []int32
	row  int
	col  int
	cur  model.Sample
	err  error
	done bool
}

// Next advances to the next sample. It returns false when the raster is
// exhausted or a read error occurred; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if it.row >= it.r.height {
		it.done = true
		return false
	}

	if it.col == 0 {
		if err := it.r.band.Read(0, it.row, it.buf, it.r.width, 1); err != nil {
			it.err = eris.Wrapf(ErrCorrupt, "raster: read row %d: %v", it.row, err)
			return false
		}
	}

	v := it.buf[it.col]
	gt := it.r.gt
	// Affine geotransform evaluated at the pixel center.
	px := float64(it.col) + 0.5
	py := float64(it.row) + 0.5
	it.cur = model.Sample{
		Lon:       gt[0] + px*gt[1] + py*gt[2],
		Lat:       gt[3] + px*gt[4] + py*gt[5],
		Elevation: v,
		NoData:    it.r.hasNodata && float64(v) == it.r.nodata,
	}

	it.col++
	if it.col >= it.r.width {
		it.col = 0
		it.row++
	}
	return true
}

// Sample returns the sample produced by the last successful Next.
func (it *Iterator) Sample() model.Sample {
	return it.cur
}

// Err returns the first read error encountered, if any.
func (it *Iterator) Err() error {
	return it.err
}
