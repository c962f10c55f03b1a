package domain

import (
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

// ParseLocation extracts a coordinate pair from a legacy location string.
//
// Two formats are accepted:
//
//	"POINT(114.17 22.28)"  WKT, longitude first
//	"22.28, 114.17"        comma pair, latitude first
//
// The differing axis order is how the backend actually emits these formats.
// Anything else, unparseable numbers, or out-of-range values yield false.
func ParseLocation(s string) (Location, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, false
	}

	if len(s) >= 5 && strings.EqualFold(s[:5], "POINT") {
		body := strings.TrimSpace(s[5:])
		body = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(body, "("), ")"))
		fields := strings.Fields(body)
		if len(fields) < 2 {
			return Location{}, false
		}
		lon, errLon := strconv.ParseFloat(fields[0], 64)
		lat, errLat := strconv.ParseFloat(fields[1], 64)
		if errLon != nil || errLat != nil {
			return Location{}, false
		}
		return checkedLocation(lat, lon)
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) < 2 {
			return Location{}, false
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat != nil || errLon != nil {
			return Location{}, false
		}
		return checkedLocation(lat, lon)
	}

	return Location{}, false
}

func checkedLocation(lat, lon float64) (Location, bool) {
	if !ValidCoordinates(lat, lon) {
		return Location{}, false
	}
	return Location{Latitude: lat, Longitude: lon}, true
}

// ValidCoordinates reports whether lat is within [-90, 90] and lon within
// [-180, 180]. NaN and infinities are rejected.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// DistanceKm returns the great-circle (haversine) distance between a and b.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
