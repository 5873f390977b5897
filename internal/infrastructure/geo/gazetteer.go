// Package geo provides the state/district gazetteer used to place farms
// on the map.
package geo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/user"
	"github.com/smartcrop/advisor/internal/ports/outbound"
)

// DefaultCoordinates is used when nothing better is known (Jogulamba Gadwal).
var DefaultCoordinates = user.Coordinates{Latitude: 16.23, Longitude: 77.80}

var fallbackDistricts = map[string][]string{
	"Telangana":      {"Jogulamba Gadwal", "Hyderabad", "Warangal", "Karimnagar"},
	"Andhra Pradesh": {"Visakhapatnam", "Vijayawada", "Guntur"},
	"Karnataka":      {"Bengaluru", "Mysuru", "Hubli"},
	"Maharashtra":    {"Mumbai", "Pune", "Nagpur"},
	"Tamil Nadu":     {"Chennai", "Coimbatore", "Madurai"},
}

// stateCoordinates is matched by substring against the lower-cased state.
var stateCoordinates = []struct {
	key    string
	coords user.Coordinates
}{
	{"telangana", user.Coordinates{Latitude: 16.23, Longitude: 77.80}},
	{"andhra pradesh", user.Coordinates{Latitude: 17.385, Longitude: 78.4867}},
	{"karnataka", user.Coordinates{Latitude: 12.9716, Longitude: 77.5946}},
	{"maharashtra", user.Coordinates{Latitude: 19.076, Longitude: 72.8777}},
	{"tamil nadu", user.Coordinates{Latitude: 13.0827, Longitude: 80.2707}},
}

type entry struct {
	State    string   `json:"state"`
	District string   `json:"district"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
}

type key struct{ state, district string }

// Gazetteer implements outbound.LocationLookup. It is read-only after Load.
type Gazetteer struct {
	districts map[string][]string
	coords    map[key]user.Coordinates
}

var _ outbound.LocationLookup = (*Gazetteer)(nil)

// Load reads a JSON array of {state, district, lat, lon} records. A missing
// or malformed file yields the built-in table. Only unexpected read
// failures are returned.
func Load(path string, logger *zap.Logger) (*Gazetteer, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("districts file not found, using built-in table", zap.String("path", path))
		return Fallback(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read districts file: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Error("districts file is malformed, using built-in table",
			zap.String("path", path),
			zap.Error(err),
		)
		return Fallback(), nil
	}

	g := fromEntries(entries)
	logger.Info("districts loaded",
		zap.String("path", path),
		zap.Int("states", len(g.districts)),
		zap.Int("districts", len(entries)),
	)
	return g, nil
}

// Fallback returns a gazetteer over the built-in table, without coordinates.
func Fallback() *Gazetteer {
	g := &Gazetteer{
		districts: make(map[string][]string, len(fallbackDistricts)),
		coords:    map[key]user.Coordinates{},
	}
	for state, list := range fallbackDistricts {
		g.districts[state] = append([]string(nil), list...)
	}
	g.sort()
	return g
}

// fromEntries builds a gazetteer from decoded records.
func fromEntries(entries []entry) *Gazetteer {
	g := &Gazetteer{
		districts: map[string][]string{},
		coords:    map[key]user.Coordinates{},
	}
	for _, e := range entries {
		g.districts[e.State] = append(g.districts[e.State], e.District)
		if e.Lat != nil && e.Lon != nil {
			g.coords[key{e.State, e.District}] = user.Coordinates{Latitude: *e.Lat, Longitude: *e.Lon}
		}
	}
	g.sort()
	return g
}

func (g *Gazetteer) sort() {
	for _, list := range g.districts {
		sort.Strings(list)
	}
}

// Coordinates returns the exact match if known, else the state's
// representative point, else DefaultCoordinates.
func (g *Gazetteer) Coordinates(state, district string) user.Coordinates {
	if c, ok := g.coords[key{state, district}]; ok {
		return c
	}
	lower := strings.ToLower(state)
	for _, sc := range stateCoordinates {
		if strings.Contains(lower, sc.key) {
			return sc.coords
		}
	}
	return DefaultCoordinates
}

// StatesDistricts returns a copy of the state to districts mapping.
func (g *Gazetteer) StatesDistricts() map[string][]string {
	out := make(map[string][]string, len(g.districts))
	for state, list := range g.districts {
		out[state] = append([]string(nil), list...)
	}
	return out
}
