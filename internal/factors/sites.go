package factors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	id "checkpoint/pkg/domain"
)

// siteFile is the on-disk shape of the site reference file. Office IDs are
// strings in the file and validated on load.
type siteFile struct {
	Sites []struct {
		OfficeID string          `yaml:"office_id"`
		Geometry *OfficeGeometry `yaml:"geometry,omitempty"`
		Networks []Network       `yaml:"networks,omitempty"`
		Beacons  []Beacon        `yaml:"beacons,omitempty"`
		Tags     []string        `yaml:"tags,omitempty"`
	} `yaml:"sites"`
}

// LoadSites reads office reference data from a YAML file. Used at startup to
// seed the in-memory directory when no external registry is wired.
func LoadSites(path string) ([]*Site, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site file: %w", err)
	}

	var file siteFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse site file: %w", err)
	}

	out := make([]*Site, 0, len(file.Sites))
	for _, s := range file.Sites {
		officeID, err := id.ParseOfficeID(s.OfficeID)
		if err != nil {
			return nil, fmt.Errorf("site %q: %w", s.OfficeID, err)
		}
		out = append(out, &Site{
			OfficeID: officeID,
			Geometry: s.Geometry,
			Networks: s.Networks,
			Beacons:  s.Beacons,
			Tags:     s.Tags,
		})
	}
	return out, nil
}
