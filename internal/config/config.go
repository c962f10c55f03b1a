package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/viper"
)

// Config holds all service settings. Values come from environment variables,
// optionally layered over a YAML file named by CONFIG_FILE.
type Config struct {
	BackendBaseURL   string        `yaml:"backend_base_url"`
	BackendTimeout   time.Duration `yaml:"backend_timeout"`
	BackendRateLimit float64       `yaml:"backend_rate_limit"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchOngoing    *bool         `yaml:"fetch_ongoing"` // nil fetches all incidents

	DefaultLat *float64 `yaml:"default_lat,omitempty"`
	DefaultLon *float64 `yaml:"default_lon,omitempty"`

	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	KafkaEnabled     bool     `yaml:"kafka_enabled"`
	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaAlertsTopic string   `yaml:"kafka_alerts_topic"`

	// Mapbox reverse geocoding configuration.
	MapboxToken    string        `yaml:"-"`
	MapboxEnabled  bool          `yaml:"mapbox_enabled"`
	MapboxTimeout  time.Duration `yaml:"mapbox_timeout"`
	MapboxCacheTTL time.Duration `yaml:"mapbox_cache_ttl"`
}

var defaults = map[string]string{
	"BACKEND_BASE_URL":   "http://localhost:8080",
	"BACKEND_TIMEOUT":    "30s",
	"BACKEND_RATE_LIMIT": "5",
	"REFRESH_INTERVAL":   "0s",
	"FETCH_ONGOING":      "true",
	"HTTP_ADDR":          ":8080",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "json",
	"KAFKA_ENABLED":      "false",
	"KAFKA_BROKERS":      "localhost:9092",
	"KAFKA_ALERTS_TOPIC": "citizen-alerts",
	"MAPBOX_TIMEOUT":     "5s",
	"MAPBOX_CACHE_TTL":   "1h",
}

// Load reads configuration from the environment and from the file named by
// CONFIG_FILE, if set.
func Load() (*Config, error) {
	return LoadFile(sharedcfg.EnvOrDefault("CONFIG_FILE", ""))
}

// LoadFile reads configuration from path (skipped when empty) with
// environment variables taking precedence over file values.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, def := range defaults {
		v.SetDefault(key, def)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parsePositiveDuration(v, "BACKEND_TIMEOUT")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration(v, "MAPBOX_TIMEOUT")
	if err != nil {
		return nil, err
	}
	mapboxCacheTTL, err := parsePositiveDuration(v, "MAPBOX_CACHE_TTL")
	if err != nil {
		return nil, err
	}

	refresh, err := time.ParseDuration(v.GetString("REFRESH_INTERVAL"))
	if err != nil || refresh < 0 {
		return nil, errors.New("invalid REFRESH_INTERVAL")
	}

	rateLimit, err := strconv.ParseFloat(v.GetString("BACKEND_RATE_LIMIT"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid BACKEND_RATE_LIMIT")
	}

	ongoing, err := parseOngoing(v.GetString("FETCH_ONGOING"))
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool(v, "KAFKA_ENABLED")
	if err != nil {
		return nil, err
	}

	mapboxToken := v.GetString("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v.IsSet("MAPBOX_ENABLED") {
		mapboxEnabled, err = parseBool(v, "MAPBOX_ENABLED")
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		BackendBaseURL:   strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		BackendTimeout:   backendTimeout,
		BackendRateLimit: rateLimit,
		RefreshInterval:  refresh,
		FetchOngoing:     ongoing,
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		ShutdownTimeout:  shutdownTimeout,
		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     sharedcfg.ParseBrokers(v.GetString("KAFKA_BROKERS")),
		KafkaAlertsTopic: v.GetString("KAFKA_ALERTS_TOPIC"),
		MapboxToken:      mapboxToken,
		MapboxEnabled:    mapboxEnabled,
		MapboxTimeout:    mapboxTimeout,
		MapboxCacheTTL:   mapboxCacheTTL,
	}

	if cfg.DefaultLat, cfg.DefaultLon, err = parseDefaultLocation(v); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("BACKEND_BASE_URL must be an absolute URL")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.KafkaEnabled && c.KafkaAlertsTopic == "" {
		return errors.New("KAFKA_ALERTS_TOPIC is required when KAFKA_ENABLED is true")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return errors.New("LOG_FORMAT must be json or text")
	}
	return nil
}

func parsePositiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(v *viper.Viper, key string) (bool, error) {
	b, err := strconv.ParseBool(v.GetString(key))
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

// parseOngoing maps "true"/"false" to a filter value and "any" to no filter.
func parseOngoing(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "":
		return nil, nil
	case "true":
		b := true
		return &b, nil
	case "false":
		b := false
		return &b, nil
	default:
		return nil, errors.New("FETCH_ONGOING must be true, false, or any")
	}
}

func parseDefaultLocation(v *viper.Viper) (*float64, *float64, error) {
	latStr, lonStr := v.GetString("DEFAULT_LAT"), v.GetString("DEFAULT_LON")
	if latStr == "" && lonStr == "" {
		return nil, nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, nil, errors.New("DEFAULT_LAT and DEFAULT_LON must be set together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil, errors.New("invalid DEFAULT_LAT")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, nil, errors.New("invalid DEFAULT_LON")
	}
	return &lat, &lon, nil
}
