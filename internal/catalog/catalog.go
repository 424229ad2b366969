// Package catalog maps region names to deterministic sets of AW3D30 tiles.
package catalog

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/terracol/terracol/internal/model"
)

// ErrUnknownRegion is returned when a region name is not in the catalog.
var ErrUnknownRegion = eris.New("catalog: unknown region")

// Region is a named latitude/longitude box aligned to integer degrees.
// Tiles are the 1°×1° cells whose southwest corner lies inside
// [South,North) × [West,East).
type Region struct {
	Name  string `yaml:"-"`
	South int    `yaml:"south"`
	West  int    `yaml:"west"`
	North int    `yaml:"north"`
	East  int    `yaml:"east"`
}

// TileCount returns the number of grid cells the region covers.
func (r Region) TileCount() int {
	return (r.North - r.South) * (r.East - r.West)
}

// builtins are the reference regions, concentric by area coverage.
func builtins() map[string]Region {
	return map[string]Region{
		"netherlands": {Name: "netherlands", South: 50, West: 3, North: 54, East: 8},
		"europe":      {Name: "europe", South: 34, West: -25, North: 72, East: 45},
		"global":      {Name: "global", South: -82, West: -180, North: 82, East: 180},
	}
}

// Catalog resolves region names to tile sets. Resolution is pure: the same
// name always yields the same tiles in the same order.
type Catalog struct {
	baseURL string
	regions map[string]Region
}

// New builds a catalog of the built-in regions with tile URLs rooted at
// baseURL.
func New(baseURL string) *Catalog {
	return &Catalog{baseURL: baseURL, regions: builtins()}
}

// Resolve returns the ordered tile set for the named region: rows
// south-to-north, cells west-to-east within each row.
func (c *Catalog) Resolve(name string) ([]model.Tile, error) {
	region, ok := c.regions[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownRegion, "catalog: resolve %q", name)
	}

	seen := make(map[string]struct{}, region.TileCount())
	tiles := make([]model.Tile, 0, region.TileCount())
	for south := region.South; south < region.North; south++ {
		for west := region.West; west < region.East; west++ {
			t := model.NewTile(south, west, c.baseURL)
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			tiles = append(tiles, t)
		}
	}
	return tiles, nil
}

// Regions lists the known regions sorted by name.
func (c *Catalog) Regions() []Region {
	out := make([]Region, 0, len(c.regions))
	for _, r := range c.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
