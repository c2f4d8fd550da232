package geofence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boundaryFixture = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"code": "K3", "name": "Upper Grove"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[23.0, 38.0], [23.2, 38.0], [23.2, 38.2], [23.0, 38.2], [23.0, 38.0]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"code": "M1"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[24.0, 38.0, 120.5], [24.1, 38.0, 121.0], [24.1, 38.1, 119.8]]]
			}
		}
	]
}`

func TestReadBoundaries(t *testing.T) {
	t.Parallel()

	boundaries, err := ReadBoundaries(strings.NewReader(boundaryFixture))
	require.NoError(t, err)
	require.Len(t, boundaries, 2)

	k3 := boundaries[0]
	assert.Equal(t, "K3", k3.Code)
	assert.Equal(t, "Upper Grove", k3.Name)
	require.Len(t, k3.Ring, 5)
	assert.Equal(t, 23.0, k3.Ring[0].Longitude)
	assert.Equal(t, 38.0, k3.Ring[0].Latitude)

	// A missing name falls back to the code; altitude values are dropped
	m1 := boundaries[1]
	assert.Equal(t, "M1", m1.Code)
	assert.Equal(t, "M1", m1.Name)
	require.Len(t, m1.Ring, 3)
	assert.Equal(t, 24.0, m1.Ring[0].Longitude)
}

func TestReadBoundariesRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
	}{
		{"not json", `{broken`},
		{"empty collection", `{"type": "FeatureCollection", "features": []}`},
		{"missing code", `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"name": "Nameless"},
			 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1]]]}}]}`},
		{"point geometry", `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"code": "K3"},
			 "geometry": {"type": "Point", "coordinates": [[[0,0]]]}}]}`},
		{"degenerate ring", `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"code": "K3"},
			 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,1]]]}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadBoundaries(strings.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}
