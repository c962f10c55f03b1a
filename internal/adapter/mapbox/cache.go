package mapbox

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory TTL cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. Entries
// expire after ttl.
func NewCachedGeocoder(inner domain.Geocoder, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return v.(domain.GeocodingResult), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.SetDefault(key, result)
	}
	return result, nil
}

// Len returns the number of cached entries, including expired ones not yet
// purged.
func (c *CachedGeocoder) Len() int {
	return c.cache.ItemCount()
}
