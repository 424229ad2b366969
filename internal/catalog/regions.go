package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// regionsFile is the on-disk shape of a region override file:
//
//	regions:
//	  benelux: {south: 49, west: 2, north: 54, east: 8}
type regionsFile struct {
	Regions map[string]Region `yaml:"regions"`
}

// LoadFile merges region definitions from a YAML file into the catalog.
// A file entry with a built-in's name replaces it.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "catalog: read regions file")
	}

	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrap(err, "catalog: parse regions file")
	}

	for name, r := range f.Regions {
		if r.North <= r.South || r.East <= r.West {
			return eris.Errorf("catalog: region %q has an empty bounding box", name)
		}
		r.Name = name
		c.regions[name] = r
	}

	zap.L().Debug("loaded region overrides",
		zap.String("path", path),
		zap.Int("regions", len(f.Regions)),
	)
	return nil
}
