package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills an alert's missing address and city from a
// reverse geocode of its coordinates. Existing values are never overwritten.
// A nil geocoder or a failed lookup returns the alert unchanged.
func EnrichWithGeocoding(ctx context.Context, alert Alert, geocoder Geocoder, logger *slog.Logger) Alert {
	if geocoder == nil {
		return alert
	}
	if alert.Location.Address != "" && alert.Location.City != "" {
		return alert
	}

	result, err := geocoder.ReverseGeocode(ctx, alert.Location.Latitude, alert.Location.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"alert_id", alert.ID,
			"lat", alert.Location.Latitude,
			"lon", alert.Location.Longitude,
			"error", err,
		)
		return alert
	}

	if alert.Location.Address == "" {
		alert.Location.Address = result.FormattedAddress
	}
	if alert.Location.City == "" {
		alert.Location.City = result.City
	}
	return alert
}
