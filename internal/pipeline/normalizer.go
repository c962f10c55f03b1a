package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
)

// Normalizer turns a fetched batch into alerts, with optional reverse
// geocoding of missing addresses.
type Normalizer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer. Pass a nil geocoder to disable
// enrichment.
func NewNormalizer(geocoder domain.Geocoder, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Normalize converts raws into alerts sorted newest first, counting the
// records it had to drop.
func (n *Normalizer) Normalize(ctx context.Context, raws []domain.RawIncident) domain.NormalizeResult {
	result := domain.NormalizeAll(raws, n.logger)
	for i := range result.Alerts {
		result.Alerts[i] = n.Enrich(ctx, result.Alerts[i])
	}
	return result
}

// Enrich fills in address details for a single alert.
func (n *Normalizer) Enrich(ctx context.Context, alert domain.Alert) domain.Alert {
	return domain.EnrichWithGeocoding(ctx, alert, n.geocoder, n.logger)
}
