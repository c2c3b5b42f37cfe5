package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"intelliwatt/internal/calendar"
)

// Tables names the Postgres tables the repositories read and write.
type Tables struct {
	Intervals string `yaml:"intervals"`
	TdspRates string `yaml:"tdsp_rates"`
	Templates string `yaml:"templates"`
}

// Config defines service configuration. Values come from the environment,
// optionally overlaid by a YAML file named in INTELLIWATT_CONFIG. Secrets
// are environment-only.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`

	// Zone is the civil timezone interval timestamps resolve against.
	Zone string `yaml:"zone"`
	// AmbiguousPolicy picks the earlier or later instant for wall clocks
	// repeated by the fall-back transition.
	AmbiguousPolicy string `yaml:"ambiguous_policy"`

	Tables Tables `yaml:"tables"`

	JWTSecret    string        `yaml:"-"`
	IngestSecret string        `yaml:"-"`
	IngestSkew   time.Duration `yaml:"-"`
}

// Load builds the configuration from env plus the optional YAML overlay.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:     getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		Zone:            getenvDefault("CIVIL_ZONE", calendar.DefaultZone),
		AmbiguousPolicy: getenvDefault("AMBIGUOUS_POLICY", string(calendar.PolicyEarlier)),
		Tables: Tables{
			Intervals: getenvDefault("INTERVALS_TABLE", ""),
			TdspRates: getenvDefault("TDSP_RATES_TABLE", ""),
			Templates: getenvDefault("TEMPLATES_TABLE", ""),
		},
		JWTSecret:    getenvDefault("AUTH_JWT_SECRET", os.Getenv("JWT_SECRET")),
		IngestSecret: os.Getenv("INGEST_HMAC_SECRET"),
		IngestSkew:   time.Duration(getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300)) * time.Second,
	}

	if path := os.Getenv("INTELLIWATT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET required")
	}
	switch calendar.AmbiguousPolicy(cfg.AmbiguousPolicy) {
	case calendar.PolicyEarlier, calendar.PolicyLater:
	default:
		return cfg, errors.New("config: ambiguous_policy must be earlier or later")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
