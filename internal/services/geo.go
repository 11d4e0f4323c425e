package services

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
)

// EarthRadiusMiles is the mean Earth radius used for haversine math
const EarthRadiusMiles = 3958.8

// ErrGeoUnavailable marks ordinary network/quota failures from a geo
// provider. Callers recover with straight-line fallbacks, never abort.
var ErrGeoUnavailable = errors.New("geo provider unavailable")

// Coordinates represents latitude and longitude
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoProvider resolves addresses and drive times. Every operation may fail
// independently; a failure means "unknown", not a hard error.
type GeoProvider interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
	DriveTimeMatrix(ctx context.Context, origin Coordinates, destinations []Coordinates) ([]float64, error)
}

// HaversineMiles calculates the straight-line distance between two GPS
// coordinates in miles
func HaversineMiles(a, b Coordinates) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMiles * c
}

// BearingDegrees returns the compass bearing from one point to another,
// in degrees 0-360 where 0 is north
func BearingDegrees(from, to Coordinates) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	deltaLng := (to.Lng - from.Lng) * math.Pi / 180

	y := math.Sin(deltaLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(deltaLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// FallbackDriveMinutes estimates drive time from straight-line distance
// when no matrix result is available
func FallbackDriveMinutes(distanceMiles float64) float64 {
	if distanceMiles < 0 {
		return 0
	}
	return distanceMiles * DriveMinutesPerMile
}

// DepotCache resolves the store's coordinates once and hands them out to
// every route build. It is explicit, injectable state with a Refresh hook
// rather than a package-level singleton, so the configured store address
// can change without a restart.
type DepotCache struct {
	address  string
	provider GeoProvider

	mu     sync.RWMutex
	coords *Coordinates
}

// NewDepotCache creates a cache that geocodes the address on first use
func NewDepotCache(address string, provider GeoProvider) *DepotCache {
	return &DepotCache{
		address:  address,
		provider: provider,
	}
}

// NewStaticDepot creates a cache pre-resolved to fixed coordinates,
// used when STORE_LAT/STORE_LNG are configured directly
func NewStaticDepot(coords Coordinates) *DepotCache {
	return &DepotCache{coords: &coords}
}

// Resolve returns the depot coordinates, geocoding the configured address
// on first call. ok is false when the depot cannot be resolved; builds
// then degrade to a single unclustered route.
func (d *DepotCache) Resolve(ctx context.Context) (Coordinates, bool) {
	d.mu.RLock()
	if d.coords != nil {
		coords := *d.coords
		d.mu.RUnlock()
		return coords, true
	}
	d.mu.RUnlock()

	if d.provider == nil || d.address == "" {
		return Coordinates{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.coords != nil {
		return *d.coords, true
	}

	coords, err := d.provider.Geocode(ctx, d.address)
	if err != nil {
		log.Printf("⚠️ Failed to geocode store address %q: %v", d.address, err)
		return Coordinates{}, false
	}

	d.coords = &coords
	log.Printf("✅ Store geocoded: %s -> (%.6f, %.6f)", d.address, coords.Lat, coords.Lng)
	return coords, true
}

// Refresh drops the cached coordinates so the next Resolve re-geocodes
func (d *DepotCache) Refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coords = nil
}
