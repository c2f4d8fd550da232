package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliveyard/harvest-go/internal/datastore"
)

func TestParseBoxCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantID    int
		wantBox   string
		wantError bool
	}{
		{"valid", "15-617848", 15, "617848", false},
		{"valid with spaces", " 15-617848 ", 15, "617848", false},
		{"lowest harvester", "1-000001", 1, "000001", false},
		{"highest harvester", "99-4", 99, "4", false},
		{"reserved waste code", "99-617848", 99, "617848", false},
		{"free-form box number", "15-A17", 15, "A17", false},
		{"no hyphen", "15617848", 0, "", true},
		{"two hyphens", "15-617-848", 0, "", true},
		{"non-numeric harvester", "AB-617848", 0, "", true},
		{"zero harvester", "0-617848", 0, "", true},
		{"harvester above range", "100-617848", 0, "", true},
		{"negative harvester", "-5-617848", 0, "", true},
		{"empty", "", 0, "", true},
		{"only hyphen", "-", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			box, rowErr := ParseBoxCode(tt.input)
			if tt.wantError {
				require.NotNil(t, rowErr)
				assert.Equal(t, datastore.ErrInvalidFormat, rowErr.Type)
				return
			}
			require.Nil(t, rowErr)
			assert.Equal(t, tt.wantID, box.HarvesterID)
			assert.Equal(t, tt.wantBox, box.BoxNumber)
		})
	}
}

func TestParseParcelCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCode string
		wantName string
		wantOK   bool
	}{
		{"code and name", "K3 - Upper Grove", "K3", "Upper Grove", true},
		{"no surrounding space", "K3-Upper Grove", "K3", "Upper Grove", true},
		{"leading hyphen promotes name", "- Upper Grove", "Upper Grove", "Upper Grove", true},
		{"bare code without hyphen", "K3", "K3", "K3", true},
		{"name only after split", "K3 -", "K3", "K3", true},
		{"only name keeps first hyphen split", "K3 - Upper - Grove", "K3", "Upper - Grove", true},
		{"empty", "", "", "", false},
		{"whitespace only", "   ", "", "", false},
		{"lone hyphen", "-", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, name, ok := ParseParcelCode(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantCode, code)
				assert.Equal(t, tt.wantName, name)
			}
		})
	}
}

func TestParseWeight(t *testing.T) {
	t.Parallel()

	const ceiling = 20000

	tests := []struct {
		name      string
		input     string
		wantGrams int
		wantType  string
	}{
		{"scenario weight", "8.285", 8285, ""},
		{"integer kilograms", "12", 12000, ""},
		{"rounding up", "8.2855", 8286, ""},
		{"decimal comma", "8,285", 8285, ""},
		{"exactly at ceiling", "20", 20000, ""},
		{"misplaced decimal point", "82.85", 0, datastore.ErrOverWeight},
		{"just over ceiling", "20.001", 0, datastore.ErrOverWeight},
		{"zero", "0", 0, datastore.ErrMissingData},
		{"negative", "-3", 0, datastore.ErrMissingData},
		{"rounds to zero", "0.0001", 0, datastore.ErrMissingData},
		{"non-numeric", "heavy", 0, datastore.ErrMissingData},
		{"empty", "", 0, datastore.ErrMissingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grams, rowErr := ParseWeight(tt.input, ceiling)
			if tt.wantType != "" {
				require.NotNil(t, rowErr)
				assert.Equal(t, tt.wantType, rowErr.Type)
				return
			}
			require.Nil(t, rowErr)
			assert.Equal(t, tt.wantGrams, grams)
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	t.Parallel()

	lat, lng, ok := ParseCoordinates("38.123 23.456")
	require.True(t, ok)
	assert.InDelta(t, 38.123, lat, 1e-9)
	assert.InDelta(t, 23.456, lng, 1e-9)

	// Extra fields beyond lat/lng (altitude, accuracy) are ignored
	lat, lng, ok = ParseCoordinates("38.123 23.456 120.0 4.0")
	require.True(t, ok)
	assert.InDelta(t, 38.123, lat, 1e-9)
	assert.InDelta(t, 23.456, lng, 1e-9)

	for _, bad := range []string{"", "38.123", "x y", "91 0", "-91 0", "0 181"} {
		_, _, ok := ParseCoordinates(bad)
		assert.False(t, ok, "input %q should be rejected", bad)
	}
}
