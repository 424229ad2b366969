package model

import (
	"fmt"
	"path/filepath"

	"github.com/twpayne/go-geom"
)

// Tile is a single 1°×1° cell of the AW3D30 grid. The identifier encodes
// the southwest corner, e.g. N052E004 for the cell spanning 52..53°N,
// 4..5°E.
type Tile struct {
	ID    string `json:"id"`
	South int    `json:"south"`
	West  int    `json:"west"`
	North int    `json:"north"`
	East  int    `json:"east"`
	URL   string `json:"url"`
}

// NewTile builds the tile whose southwest corner is (south, west) degrees.
func NewTile(south, west int, baseURL string) Tile {
	id := TileID(south, west)
	return Tile{
		ID:    id,
		South: south,
		West:  west,
		North: south + 1,
		East:  west + 1,
		URL:   baseURL + "/" + objectName(id),
	}
}

// TileID returns the grid identifier for the cell with the given southwest
// corner: hemisphere letter + 3-digit latitude, then 3-digit longitude.
func TileID(south, west int) string {
	ns, ew := byte('N'), byte('E')
	if south < 0 {
		ns = 'S'
		south = -south
	}
	if west < 0 {
		ew = 'W'
		west = -west
	}
	return fmt.Sprintf("%c%03d%c%03d", ns, south, ew, west)
}

func objectName(id string) string {
	return "ALPSMLC30_" + id + "_DSM.tif"
}

// RawPath returns the local path of the tile's source GeoTIFF under dir.
func (t Tile) RawPath(dir string) string {
	return filepath.Join(dir, objectName(t.ID))
}

// OutputPath returns the local path of the tile's Parquet file under dir.
func (t Tile) OutputPath(dir string) string {
	return filepath.Join(dir, t.ID+".parquet")
}

// Bounds returns the tile's bounding box in lon/lat order.
func (t Tile) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(
		float64(t.West), float64(t.South),
		float64(t.East), float64(t.North),
	)
}

// Sample is one geocoded pixel pulled from a tile's raster. Coordinates are
// the pixel center in degrees. When NoData is set, Elevation is meaningless
// and must not be persisted as a numeric value.
type Sample struct {
	Lat       float64
	Lon       float64
	Elevation int32
	NoData    bool
}
