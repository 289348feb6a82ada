package entities

import "github.com/paulmach/orb"

// Region represents a monitored area with a single NDVI time series.
type Region struct {
	ID        string  `json:"id" yaml:"id"` // unique region slug, e.g. "bhopal"
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	DataFile  string  `json:"data_file,omitempty" yaml:"data_file,omitempty"` // optional seed CSV

	Phenology *BloomProfile `json:"phenology,omitempty" yaml:"phenology,omitempty"`
}

// Centroid returns the region center as a lon/lat point.
func (r Region) Centroid() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// Profile returns the region's phenology, falling back to the default.
func (r Region) Profile() BloomProfile {
	if r.Phenology != nil {
		return *r.Phenology
	}
	return DefaultBloomProfile()
}

// RegionSet is the parsed form of the regions config file.
type RegionSet struct {
	Regions []Region `json:"regions" yaml:"regions"`
}

func (rs *RegionSet) Get(regionID string) *Region {
	for i := range rs.Regions {
		if rs.Regions[i].ID == regionID {
			return &rs.Regions[i]
		}
	}
	return nil
}

// IDs returns the region slugs in declaration order.
func (rs *RegionSet) IDs() []string {
	out := make([]string, 0, len(rs.Regions))
	for i := range rs.Regions {
		out = append(out, rs.Regions[i].ID)
	}
	return out
}
