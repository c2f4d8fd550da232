// Package geofence resolves coordinates to the parcel whose polygon contains them.
package geofence

import (
	"github.com/oliveyard/harvest-go/internal/datastore"
)

// Point is a longitude/latitude pair.
type Point struct {
	Lng float64
	Lat float64
}

// Polygon is an ordered boundary ring. Rings arriving in closed GeoJSON form
// (last vertex repeating the first) are handled; holes are not supported.
type Polygon []Point

// Contains reports whether p lies inside the polygon, using the classic
// ray-casting crossing count. Points exactly on an edge may resolve either
// way, but the result is deterministic for a fixed input.
func (poly Polygon) Contains(p Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	// Ignore a closing vertex that repeats the first
	if poly[0] == poly[n-1] {
		n--
		if n < 3 {
			return false
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := poly[i], poly[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) &&
			p.Lng < (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lng {
			inside = !inside
		}
	}
	return inside
}

// Entry is one labeled polygon in the index.
type Entry struct {
	Code    string
	Name    string
	Polygon Polygon
}

// Index holds the batch-scoped snapshot of active parcel polygons. It is
// built once at batch start and mutated in memory as parcels are auto-created
// during the batch; it must not be shared across concurrent batches.
type Index struct {
	entries []Entry
}

// NewIndex builds an index from the active parcel catalog. Parcels without a
// usable polygon are skipped. Catalog order is preserved: the first containing
// polygon wins on overlap.
func NewIndex(parcels []datastore.Parcel) *Index {
	idx := &Index{}
	for i := range parcels {
		idx.AddParcel(&parcels[i])
	}
	return idx
}

// AddParcel appends a parcel's polygon to the index if it carries one.
func (idx *Index) AddParcel(parcel *datastore.Parcel) {
	if !parcel.HasPolygon() {
		return
	}
	poly := make(Polygon, 0, len(parcel.Vertices))
	for _, v := range parcel.Vertices {
		poly = append(poly, Point{Lng: v.Longitude, Lat: v.Latitude})
	}
	idx.entries = append(idx.entries, Entry{
		Code:    parcel.Code,
		Name:    parcel.Name,
		Polygon: poly,
	})
}

// Add appends a labeled polygon directly.
func (idx *Index) Add(code, name string, poly Polygon) {
	if len(poly) < 3 {
		return
	}
	idx.entries = append(idx.entries, Entry{Code: code, Name: name, Polygon: poly})
}

// Len returns the number of indexed polygons.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Resolve returns the first indexed polygon containing the point, in catalog
// order. Ties between overlapping polygons are resolved by order, not area.
func (idx *Index) Resolve(p Point) (*Entry, bool) {
	for i := range idx.entries {
		if idx.entries[i].Polygon.Contains(p) {
			return &idx.entries[i], true
		}
	}
	return nil, false
}
