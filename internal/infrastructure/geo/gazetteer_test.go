package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smartcrop/advisor/internal/domain/user"
)

const sample = `[
  {"state": "Telangana", "district": "Nalgonda", "lat": 17.05, "lon": 79.27},
  {"state": "Telangana", "district": "Hyderabad", "lat": 17.385, "lon": 78.4867},
  {"state": "Punjab", "district": "Ludhiana"}
]`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "districts.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	g, err := Load(writeFile(t, sample), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		"Telangana": {"Hyderabad", "Nalgonda"},
		"Punjab":    {"Ludhiana"},
	}, g.StatesDistricts())

	assert.Equal(t, user.Coordinates{Latitude: 17.05, Longitude: 79.27}, g.Coordinates("Telangana", "Nalgonda"))
}

func TestLoad_MissingFileUsesFallback(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "nope.json"), zaptest.NewLogger(t))
	require.NoError(t, err)

	sd := g.StatesDistricts()
	assert.Len(t, sd, 5)
	assert.Equal(t, []string{"Hyderabad", "Jogulamba Gadwal", "Karimnagar", "Warangal"}, sd["Telangana"])
}

func TestLoad_MalformedUsesFallback(t *testing.T) {
	g, err := Load(writeFile(t, `{"state":`), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, g.StatesDistricts(), "Tamil Nadu")
	assert.Equal(t, DefaultCoordinates, g.Coordinates("Telangana", "Hyderabad"))
}

func TestCoordinates_Fallbacks(t *testing.T) {
	g, err := Load(writeFile(t, sample), zaptest.NewLogger(t))
	require.NoError(t, err)

	// No coordinates on record, no state match.
	assert.Equal(t, DefaultCoordinates, g.Coordinates("Punjab", "Ludhiana"))
	// Unknown district, state matched by substring.
	assert.Equal(t, user.Coordinates{Latitude: 12.9716, Longitude: 77.5946}, g.Coordinates("Karnataka", "Mandya"))
	assert.Equal(t, user.Coordinates{Latitude: 13.0827, Longitude: 80.2707}, g.Coordinates("State of Tamil Nadu", "X"))
	assert.Equal(t, DefaultCoordinates, g.Coordinates("", ""))
}

func TestStatesDistricts_ReturnsCopy(t *testing.T) {
	g := Fallback()
	sd := g.StatesDistricts()
	sd["Telangana"][0] = "Changed"
	delete(sd, "Karnataka")

	again := g.StatesDistricts()
	assert.Equal(t, "Hyderabad", again["Telangana"][0])
	assert.Contains(t, again, "Karnataka")
}
