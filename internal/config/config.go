// Package config loads and validates settings at startup.
// Fail-fast: if a required setting is missing or malformed, the process exits.
//
// Sources, later ones winning: built-in defaults, the YAML file named by
// CONFIG_FILE, a .env file in the working directory, the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// Config holds all runtime configuration for the service.
type Config struct {
	StoreDriver   string        `yaml:"store_driver"` // postgres, mongo or sqlite
	DatabaseURL   string        `yaml:"database_url"`
	MongoURI      string        `yaml:"mongodb_uri"`
	MongoDatabase string        `yaml:"mongo_db_name"`
	SQLitePath    string        `yaml:"sqlite_path"`
	StoreTimeout  time.Duration `yaml:"store_timeout"`
	RedisURL      string        `yaml:"redis_url"`

	GoogleMapsAPIKey string        `yaml:"google_maps_api_key"`
	TravelTimeout    time.Duration `yaml:"travel_timeout"`
	TravelMaxRetries int           `yaml:"travel_max_retries"`
	TelegramBotToken string        `yaml:"telegram_bot_token"`

	SiteBaseURL        string          `yaml:"site_base_url"`
	SiteCity           string          `yaml:"site_city"`
	SiteCityID         int             `yaml:"site_city_id"`
	SiteOfferType      model.OfferType `yaml:"site_offer_type"`
	ScrapeMaxPages     int             `yaml:"scrape_max_pages"`
	ScrapeRequestDelay time.Duration   `yaml:"scrape_request_delay"`
	ScrapeExcludeTerms []string        `yaml:"scrape_exclude_terms"`

	CacheTTL   time.Duration `yaml:"cache_ttl"`
	OfferLife  time.Duration `yaml:"offer_life"`
	FinderLife time.Duration `yaml:"finder_life"`

	ScrapeIntervalHours  int `yaml:"scrape_interval_hours"`  // How often the parser runs
	MatchIntervalMinutes int `yaml:"match_interval_minutes"` // How often finders are run

	OpsPort  string     `yaml:"ops_port"`
	LogLevel slog.Level `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		StoreDriver:          "postgres",
		MongoDatabase:        "easyfinder",
		SQLitePath:           "easyfinder.db",
		StoreTimeout:         10 * time.Second,
		TravelTimeout:        10 * time.Second,
		TravelMaxRetries:     5,
		SiteBaseURL:          "https://www.wg-gesucht.de",
		SiteCity:             "München",
		SiteCityID:           90,
		SiteOfferType:        model.OfferTypeOneRoom,
		ScrapeMaxPages:       2,
		ScrapeRequestDelay:   2 * time.Second,
		CacheTTL:             600 * time.Second,
		OfferLife:            10 * 24 * time.Hour,
		FinderLife:           30 * 24 * time.Hour,
		ScrapeIntervalHours:  1,
		MatchIntervalMinutes: 30,
		OpsPort:              "8082",
		LogLevel:             slog.LevelInfo,
	}
}

// Load reads .env, the optional YAML file and the environment, and returns
// a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := defaults()

	if path := getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("CONFIG_FILE: %w", err)
		}
		if err := yaml.UnmarshalStrict(b, cfg); err != nil {
			return nil, fmt.Errorf("CONFIG_FILE %s: %w", path, err)
		}
	}

	e := envReader{getenv: getenv}
	e.str("STORE_DRIVER", &cfg.StoreDriver)
	e.str("DATABASE_URL", &cfg.DatabaseURL)
	e.str("MONGODB_URI", &cfg.MongoURI)
	e.str("MONGO_DB_NAME", &cfg.MongoDatabase)
	e.str("SQLITE_PATH", &cfg.SQLitePath)
	e.duration("STORE_TIMEOUT", &cfg.StoreTimeout)
	e.str("REDIS_URL", &cfg.RedisURL)
	e.str("GOOGLE_MAPS_API_KEY", &cfg.GoogleMapsAPIKey)
	e.duration("TRAVEL_TIMEOUT", &cfg.TravelTimeout)
	e.positive("TRAVEL_MAX_RETRIES", &cfg.TravelMaxRetries)
	e.str("TELEGRAM_BOT_TOKEN", &cfg.TelegramBotToken)
	e.str("SITE_BASE_URL", &cfg.SiteBaseURL)
	e.str("SITE_CITY", &cfg.SiteCity)
	e.positive("SITE_CITY_ID", &cfg.SiteCityID)
	if s := getenv("SITE_OFFER_TYPE"); s != "" {
		cfg.SiteOfferType = model.OfferType(s)
	}
	e.positive("SCRAPE_MAX_PAGES", &cfg.ScrapeMaxPages)
	e.duration("SCRAPE_REQUEST_DELAY", &cfg.ScrapeRequestDelay)
	if s := getenv("SCRAPE_EXCLUDE_TERMS"); s != "" {
		cfg.ScrapeExcludeTerms = splitList(s)
	}
	e.duration("CACHE_TTL", &cfg.CacheTTL)
	e.duration("OFFER_LIFE", &cfg.OfferLife)
	e.duration("FINDER_LIFE", &cfg.FinderLife)
	e.positive("SCRAPE_INTERVAL_HOURS", &cfg.ScrapeIntervalHours)
	e.positive("MATCH_INTERVAL_MINUTES", &cfg.MatchIntervalMinutes)
	e.str("OPS_PORT", &cfg.OpsPort)
	if s := getenv("LOG_LEVEL"); s != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(s)); err != nil {
			e.errs = append(e.errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s))
		}
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres, mongo or sqlite, got %q", c.StoreDriver)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.GoogleMapsAPIKey == "" {
		return fmt.Errorf("GOOGLE_MAPS_API_KEY is required")
	}
	if _, err := model.ParseOfferType(string(c.SiteOfferType)); err != nil {
		return fmt.Errorf("SITE_OFFER_TYPE: %w", err)
	}
	if c.SiteCity == "" || c.SiteCityID < 1 {
		return fmt.Errorf("SITE_CITY and SITE_CITY_ID are required")
	}
	if c.ScrapeIntervalHours < 1 || c.MatchIntervalMinutes < 1 {
		return fmt.Errorf("SCRAPE_INTERVAL_HOURS and MATCH_INTERVAL_MINUTES must be positive")
	}
	if c.CacheTTL <= 0 || c.OfferLife <= 0 || c.FinderLife <= 0 {
		return fmt.Errorf("CACHE_TTL, OFFER_LIFE and FINDER_LIFE must be positive")
	}
	return nil
}

// envReader applies environment overrides and collects parse errors.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key string, dst *string) {
	if s := e.getenv(key); s != "" {
		*dst = s
	}
}

func (e *envReader) positive(key string, dst *int) {
	s := e.getenv(key)
	if s == "" {
		return
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		e.errs = append(e.errs, fmt.Errorf("%s must be a positive integer, got %q", key, s))
		return
	}
	*dst = v
}

func (e *envReader) duration(key string, dst *time.Duration) {
	s := e.getenv(key)
	if s == "" {
		return
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s must be a positive duration like 600s or 240h, got %q", key, s))
		return
	}
	*dst = v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
