package raster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracol/terracol/internal/model"
)

const testNodata = -9999

// writeTestTIFF synthesizes a small single-band GeoTIFF covering
// lon 4..5, lat 52..53 with the given pixel values in row-major order.
func writeTestTIFF(t *testing.T, path string, width, height int, values []int16) {
	t.Helper()
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Int16, width, height)
	require.NoError(t, err)

	gt := [6]float64{4, 1 / float64(width), 0, 53, 0, -1 / float64(height)}
	require.NoError(t, ds.SetGeoTransform(gt))

	band := ds.Bands()[0]
	require.NoError(t, band.SetNoData(testNodata))
	require.NoError(t, band.Write(0, 0, values, width, height))
	require.NoError(t, ds.Close())
}

func collect(t *testing.T, it *Iterator) []model.Sample {
	t.Helper()
	var out []model.Sample
	for it.Next() {
		out = append(out, it.Sample())
	}
	require.NoError(t, it.Err())
	return out
}

func TestDecodeRowMajorWithPixelCenters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.tif")
	writeTestTIFF(t, path, 2, 2, []int16{10, 20, 30, 40})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.Width())
	assert.Equal(t, 2, r.Height())

	samples := collect(t, r.Samples())
	require.Len(t, samples, 4)

	// Top-left pixel center: lon 4.25, lat 52.75.
	assert.InDelta(t, 4.25, samples[0].Lon, 1e-9)
	assert.InDelta(t, 52.75, samples[0].Lat, 1e-9)
	assert.Equal(t, int32(10), samples[0].Elevation)

	// Row-major: second sample is to the east, third drops a row.
	assert.InDelta(t, 4.75, samples[1].Lon, 1e-9)
	assert.InDelta(t, 52.75, samples[1].Lat, 1e-9)
	assert.Equal(t, int32(20), samples[1].Elevation)
	assert.InDelta(t, 4.25, samples[2].Lon, 1e-9)
	assert.InDelta(t, 52.25, samples[2].Lat, 1e-9)

	for _, s := range samples {
		assert.False(t, s.NoData)
	}
}

func TestDecodeNodataSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.tif")
	writeTestTIFF(t, path, 2, 1, []int16{testNodata, 0})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	samples := collect(t, r.Samples())
	require.Len(t, samples, 2)

	assert.True(t, samples[0].NoData)
	// Elevation zero is a real value, not nodata.
	assert.False(t, samples[1].NoData)
	assert.Equal(t, int32(0), samples[1].Elevation)
}

func TestSamplesStartsFreshEachCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.tif")
	writeTestTIFF(t, path, 2, 1, []int16{7, 8})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	first := collect(t, r.Samples())
	second := collect(t, r.Samples())
	assert.Equal(t, first, second)
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.tif")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a tiff"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tif"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestOpenRejectsMultiband(t *testing.T) {
	registerOnce.Do(godal.RegisterAll)
	path := filepath.Join(t.TempDir(), "rgb.tif")

	ds, err := godal.Create(godal.GTiff, path, 3, godal.Byte, 2, 2)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{4, 0.5, 0, 53, 0, -0.5}))
	require.NoError(t, ds.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestOpenRejectsFloatBand(t *testing.T) {
	registerOnce.Do(godal.RegisterAll)
	path := filepath.Join(t.TempDir(), "float.tif")

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, 2, 2)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{4, 0.5, 0, 53, 0, -0.5}))
	require.NoError(t, ds.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
