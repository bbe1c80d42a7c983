package internal

import (
	"math"
)

// UnknownLocation is the sentinel place name used when coordinates are
// absent or no lookup succeeds.
const UnknownLocation = "Unknown Location"

// locationRadiusM is how close a cached coordinate must be for reuse.
const locationRadiusM = 3000

// PlaceName holds resolved human-readable location fields for a coordinate
// pair. Default carries the most specific available value.
type PlaceName struct {
	City    string
	Town    string
	Village string
	State   string
	Country string
	Default string
}

func unknownPlace() PlaceName {
	return PlaceName{Default: UnknownLocation}
}

// Field returns the value of a named place component; the "location" field
// always reads Default.
func (p PlaceName) Field(name string) string {
	switch name {
	case "city":
		return p.City
	case "town":
		return p.Town
	case "village":
		return p.Village
	case "state":
		return p.State
	case "country":
		return p.Country
	case "location", "default":
		return p.Default
	}
	return ""
}

// placeFromAddress populates a PlaceName from address components in
// city, town, village, state, country precedence order. Default becomes
// the first present component. Empty result means nothing resolved.
func placeFromAddress(addr *Address) (PlaceName, bool) {
	var place PlaceName
	found := false
	for _, c := range []struct {
		value string
		dst   *string
	}{
		{addr.City, &place.City},
		{addr.Town, &place.Town},
		{addr.Village, &place.Village},
		{addr.State, &place.State},
		{addr.Country, &place.Country},
	} {
		if c.value == "" {
			continue
		}
		*c.dst = c.value
		if place.Default == "" {
			place.Default = c.value
		}
		found = true
	}
	return place, found
}

// LocationStore is the persistence boundary for resolved places.
type LocationStore interface {
	NearestLocation(lat, lon float64, radiusM float64) (PlaceName, bool, error)
	PutLocation(lat, lon float64, place PlaceName) error
	LocationByName(name string) (lat, lon float64, found bool, err error)
	PutNamedLocation(name string, lat, lon float64) error
}

// LocationCache maps coordinates to place names while minimizing external
// geocoder calls through a proximity-indexed persistent cache.
type LocationCache struct {
	store         LocationStore
	geocoder      Geocoder
	preferEnglish bool
	logger        *Logger
}

func NewLocationCache(store LocationStore, geocoder Geocoder, preferEnglish bool, logger *Logger) *LocationCache {
	return &LocationCache{
		store:         store,
		geocoder:      geocoder,
		preferEnglish: preferEnglish,
		logger:        logger,
	}
}

// Resolve maps a coordinate pair to a PlaceName. Coordinates within 3 km of
// a previously cached point reuse the cached value without a network call.
// Failed lookups degrade to Unknown Location and are never persisted, so a
// later successful lookup is not blocked by the miss.
func (c *LocationCache) Resolve(lat, lon *float64) PlaceName {
	if lat == nil || lon == nil {
		return unknownPlace()
	}

	if cached, ok, err := c.store.NearestLocation(*lat, *lon, locationRadiusM); err == nil && ok {
		return cached
	} else if err != nil {
		c.logger.Warn("location cache lookup failed: %v", err)
	}

	lang := "local"
	if c.preferEnglish {
		lang = "en"
	}
	addr, err := c.geocoder.ReverseGeocode(*lat, *lon, lang)
	if err != nil {
		c.logger.Warn("geocoding failed for (%f, %f): %v", *lat, *lon, err)
		return unknownPlace()
	}
	if addr == nil {
		// The lookup succeeded but resolved nothing for these coordinates.
		return unknownPlace()
	}

	place, found := placeFromAddress(addr)
	if !found {
		return unknownPlace()
	}

	if err := c.store.PutLocation(*lat, *lon, place); err != nil {
		c.logger.Warn("failed to persist location (%f, %f): %v", *lat, *lon, err)
	}
	return place
}

// CoordinatesByName resolves a place name to coordinates, consulting the
// named-location cache before the geocoder.
func (c *LocationCache) CoordinatesByName(name string) (float64, float64, bool, error) {
	if lat, lon, found, err := c.store.LocationByName(name); err == nil && found {
		return lat, lon, true, nil
	}

	lat, lon, found, err := c.geocoder.Geocode(name)
	if err != nil || !found {
		return 0, 0, false, err
	}

	if err := c.store.PutNamedLocation(name, lat, lon); err != nil {
		c.logger.Warn("failed to persist named location %q: %v", name, err)
	}
	return lat, lon, true, nil
}

// distanceM estimates the distance in meters between two coordinates.
// The equirectangular approximation is accurate enough at the cache
// radius scale.
func distanceM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	la1, lo1, la2, lo2 := rad(lat1), rad(lon1), rad(lat2), rad(lon2)

	x := (lo2 - lo1) * math.Cos(0.5*(la2+la1))
	y := la2 - la1
	return earthRadiusM * math.Sqrt(x*x+y*y)
}
