package cli

import (
	"io"
	"log/slog"

	"github.com/couchcryptid/citizen-alerts-service/internal/adapter/backend"
	kafkaadapter "github.com/couchcryptid/citizen-alerts-service/internal/adapter/kafka"
	"github.com/couchcryptid/citizen-alerts-service/internal/adapter/mapbox"
	"github.com/couchcryptid/citizen-alerts-service/internal/config"
	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
	"github.com/couchcryptid/citizen-alerts-service/internal/pipeline"
	"github.com/couchcryptid/citizen-alerts-service/internal/store"
)

// app is the assembled pipeline with everything it needs closed on exit.
type app struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	closers  []io.Closer
}

func newApp(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *app {
	a := &app{logger: logger}

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheTTL, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_ttl", cfg.MapboxCacheTTL, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		publisher = w
		a.closers = append(a.closers, w)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertsTopic)
	}

	var locations domain.LocationProvider
	if cfg.DefaultLat != nil && cfg.DefaultLon != nil {
		locations = domain.NewStaticLocation(domain.Location{Latitude: *cfg.DefaultLat, Longitude: *cfg.DefaultLon})
	}

	gateway := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, cfg.BackendRateLimit, logger, metrics)
	a.pipeline = pipeline.New(gateway, store.New(), logger, metrics, pipeline.Options{
		Geocoder:        geocoder,
		Publisher:       publisher,
		Locations:       locations,
		DefaultOngoing:  cfg.FetchOngoing,
		RefreshInterval: cfg.RefreshInterval,
	})
	return a
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}
