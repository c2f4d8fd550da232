package geofence

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/errors"
)

// Boundary is one named parcel ring parsed from a boundary file, ready for
// the catalog import flow.
type Boundary struct {
	Code string
	Name string
	Ring []datastore.ParcelVertex
}

// GeoJSON feature collection, restricted to what parcel boundary exports
// carry: Polygon features with code/name properties.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string `json:"type"`
	Properties struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"properties"`
	Geometry struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	} `json:"geometry"`
}

// ReadBoundaries parses a GeoJSON feature collection of parcel boundary
// polygons. Every feature must carry a code property and a Polygon geometry;
// only the outer ring is kept, holes are ignored. Positions follow GeoJSON
// order, longitude first.
func ReadBoundaries(r io.Reader) ([]Boundary, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, errors.New(fmt.Errorf("decoding boundary file: %w", err)).
			Component("geofence").
			Category(errors.CategoryFileParsing).
			Build()
	}
	if len(fc.Features) == 0 {
		return nil, errors.Newf("boundary file contains no features").
			Component("geofence").
			Category(errors.CategoryFileParsing).
			Build()
	}

	boundaries := make([]Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Properties.Code == "" {
			return nil, errors.Newf("feature %d has no parcel code property", i).
				Component("geofence").
				Category(errors.CategoryFileParsing).
				Build()
		}
		if f.Geometry.Type != "Polygon" || len(f.Geometry.Coordinates) == 0 {
			return nil, errors.Newf("feature %d (parcel %s) has no polygon geometry", i, f.Properties.Code).
				Component("geofence").
				Category(errors.CategoryFileParsing).
				Build()
		}

		outer := f.Geometry.Coordinates[0]
		if len(outer) < 3 {
			return nil, errors.Newf("feature %d (parcel %s) ring has fewer than 3 vertices", i, f.Properties.Code).
				Component("geofence").
				Category(errors.CategoryFileParsing).
				Build()
		}

		name := f.Properties.Name
		if name == "" {
			name = f.Properties.Code
		}
		ring := make([]datastore.ParcelVertex, 0, len(outer))
		for _, pos := range outer {
			ring = append(ring, datastore.ParcelVertex{Longitude: pos[0], Latitude: pos[1]})
		}
		boundaries = append(boundaries, Boundary{
			Code: f.Properties.Code,
			Name: name,
			Ring: ring,
		})
	}
	return boundaries, nil
}
