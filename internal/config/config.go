package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	ManualRivers  []string
	ServiceURL    string
	USGSURL       string
	DefaultPeriod string
	DatabaseURL   string

	LogLevel        string
	LogFormat       string
	HTTPTimeout     time.Duration
	RunTimeout      time.Duration
	ShutdownTimeout time.Duration

	FetchConcurrency int
	UpstreamRetries  int

	// Optional observation publishing; enabled when KafkaBrokers is non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional metrics push; enabled when PushgatewayURL is set.
	PushgatewayURL string
}

// PublishEnabled reports whether committed observations go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	runTimeout, err := parsePositiveDuration("RUN_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	concurrency, err := parseIntInRange("FETCH_CONCURRENCY", 4, 1, 32)
	if err != nil {
		return nil, err
	}
	retries, err := parseIntInRange("UPSTREAM_RETRIES", 2, 0, 5)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		ManualRivers:  parseList(os.Getenv("MANUAL_RIVERS")),
		ServiceURL:    strings.TrimRight(os.Getenv("SERVICE_BASEURL"), "/"),
		USGSURL:       sharedcfg.EnvOrDefault("USGS_URL", "https://waterservices.usgs.gov/nwis/iv/"),
		DefaultPeriod: sharedcfg.EnvOrDefault("DEFAULT_PERIOD", "P1D"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPTimeout:     httpTimeout,
		RunTimeout:      runTimeout,
		ShutdownTimeout: shutdownTimeout,

		FetchConcurrency: concurrency,
		UpstreamRetries:  retries,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "river-observations"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	if cfg.ServiceURL == "" {
		return nil, errors.New("SERVICE_BASEURL is required")
	}
	if err := validateURL("SERVICE_BASEURL", cfg.ServiceURL); err != nil {
		return nil, err
	}
	if err := validateURL("USGS_URL", cfg.USGSURL); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if !strings.HasPrefix(strings.ToUpper(cfg.DefaultPeriod), "P") {
		return nil, fmt.Errorf("invalid DEFAULT_PERIOD %q: expected an ISO-8601 duration such as P1D", cfg.DefaultPeriod)
	}
	if cfg.PublishEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q", key, raw)
	}
	return nil
}
