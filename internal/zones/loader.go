package zones

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// LoadOptions controls load-time cleanup of region geometry.
type LoadOptions struct {
	SimplifyEpsilon float64 // degrees; 0 disables simplification
	DropContained   bool
}

// LoadDir reads every *.geojson file in dir and returns the resulting
// registry. A missing directory yields an empty registry. Files that cannot
// be parsed are skipped with a warning.
func LoadDir(dir string, opts LoadOptions, log logrus.FieldLogger) (*Registry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, fmt.Errorf("glob unsafe zone files: %w", err)
	}

	log.WithField("files", len(files)).Info("Loading unsafe zones")

	var all []Region
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.WithError(err).WithField("file", file).Warn("Failed to read zone file")
			continue
		}

		regions, err := ParseFeatureCollection(data)
		if err != nil {
			log.WithError(err).WithField("file", file).Warn("Failed to parse zone file")
			continue
		}

		log.WithFields(logrus.Fields{
			"file":    filepath.Base(file),
			"regions": len(regions),
		}).Debug("Loaded zone file")
		all = append(all, regions...)
	}

	loaded := len(all)
	all = Simplify(all, opts.SimplifyEpsilon)
	if opts.DropContained {
		all = RemoveContained(all)
	}

	registry := NewRegistry(all)
	log.WithFields(logrus.Fields{
		"loaded":  loaded,
		"indexed": registry.Len(),
	}).Info("Unsafe zones ready")
	return registry, nil
}

// ParseFeatureCollection converts Polygon and MultiPolygon features into
// regions. Only outer rings are kept; holes are ignored.
func ParseFeatureCollection(data []byte) ([]Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var regions []Region
	for i, feature := range fc.Features {
		name := featureName(feature, i)
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			if len(g) > 0 {
				regions = append(regions, Region{Name: name, Ring: g[0]})
			}
		case orb.MultiPolygon:
			for _, poly := range g {
				if len(poly) > 0 {
					regions = append(regions, Region{Name: name, Ring: poly[0]})
				}
			}
		}
	}
	return regions, nil
}

func featureName(f *geojson.Feature, index int) string {
	if name := f.Properties.MustString("name", ""); name != "" {
		return name
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return fmt.Sprintf("zone-%d", index)
}
