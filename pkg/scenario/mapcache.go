// mapcache.go implements the single process-wide loaded-map cache: a
// world landmark layout referenced by file path from one or more nodes'
// sensor configs is parsed once and shared, never mutated after it is
// first loaded.
package scenario

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// LandmarkPoint is one fixed point in a shared world map.
type LandmarkPoint struct {
	Name string  `yaml:"name" json:"name"`
	X    float64 `yaml:"x" json:"x"`
	Y    float64 `yaml:"y" json:"y"`
}

// LandmarkMap is a named set of landmarks loaded from a single file and
// shared by every node whose sensor config references that path.
type LandmarkMap struct {
	Landmarks []LandmarkPoint `yaml:"landmarks" json:"landmarks"`
}

var mapCache sync.Map // path -> *LandmarkMap

// LoadLandmarkMap parses path once and caches the result keyed by path;
// every subsequent call for the same path returns the cached map instead
// of re-reading and re-parsing the file.
func LoadLandmarkMap(path string) (*LandmarkMap, error) {
	if cached, ok := mapCache.Load(path); ok {
		return cached.(*LandmarkMap), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LandmarkMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	actual, _ := mapCache.LoadOrStore(path, &m)
	return actual.(*LandmarkMap), nil
}
