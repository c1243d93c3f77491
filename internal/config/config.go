package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	Catalog       CatalogConfig
	Browser       BrowserConfig
	AI            AIConfig
	ObjectStore   ObjectStoreConfig
	Import        ImportConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type CatalogConfig struct {
	// File optionally replaces the embedded dataset catalog.
	File string
}

type BrowserConfig struct {
	PageSize      int
	RelationLimit int
}

type AIConfig struct {
	Provider      string
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   float64
	Timeout       time.Duration
	AdvisoryRows  int
	RequireSelect bool
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ImportConfig struct {
	Source  string
	Format  string
	Replace bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("XWINES_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid XWINES_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "XWINES_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "XWINES_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "XWINES_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "XWINES_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "XWINES_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "XWINES_STORE_DRIVER", &cfg.Store.Driver) },
		func() error { return applyString(lookup, "XWINES_STORE_DSN", &cfg.Store.DSN) },
		func() error { return applyInt(lookup, "XWINES_STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns) },
		func() error { return applyInt(lookup, "XWINES_STORE_MAX_IDLE_CONNS", &cfg.Store.MaxIdleConns) },
		func() error { return applyDuration(lookup, "XWINES_STORE_CONN_MAX_IDLE_TIME", &cfg.Store.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "XWINES_STORE_CONN_MAX_LIFETIME", &cfg.Store.ConnMaxLifetime) },
		func() error { return applyString(lookup, "XWINES_CATALOG_FILE", &cfg.Catalog.File) },
		func() error { return applyInt(lookup, "XWINES_BROWSER_PAGE_SIZE", &cfg.Browser.PageSize) },
		func() error { return applyInt(lookup, "XWINES_BROWSER_RELATION_LIMIT", &cfg.Browser.RelationLimit) },
		func() error { return applyString(lookup, "XWINES_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "XWINES_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "XWINES_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "XWINES_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "XWINES_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "XWINES_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "XWINES_AI_ADVISORY_ROWS", &cfg.AI.AdvisoryRows) },
		func() error { return applyBool(lookup, "XWINES_AI_REQUIRE_SELECT", &cfg.AI.RequireSelect) },
		func() error { return applyString(lookup, "XWINES_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "XWINES_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "XWINES_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "XWINES_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "XWINES_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "XWINES_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "XWINES_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyString(lookup, "XWINES_IMPORT_SOURCE", &cfg.Import.Source) },
		func() error { return applyString(lookup, "XWINES_IMPORT_FORMAT", &cfg.Import.Format) },
		func() error { return applyBool(lookup, "XWINES_IMPORT_REPLACE", &cfg.Import.Replace) },
		func() error { return applyBool(lookup, "XWINES_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "XWINES_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "XWINES_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "XWINES_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Store.DSN == "" {
		return Config{}, fmt.Errorf("store dsn is required")
	}
	if cfg.Browser.PageSize <= 0 {
		return Config{}, fmt.Errorf("invalid XWINES_BROWSER_PAGE_SIZE: must be positive")
	}
	if cfg.Browser.RelationLimit <= 0 {
		return Config{}, fmt.Errorf("invalid XWINES_BROWSER_RELATION_LIMIT: must be positive")
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	switch cfg.AI.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return Config{}, fmt.Errorf("invalid XWINES_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "xwines-api"},
		HTTP: HTTPConfig{
			Address:      ":5000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:          "sqlite",
			DSN:             "XWines.db",
			MaxOpenConns:    8,
			MaxIdleConns:    8,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Browser: BrowserConfig{
			PageSize:      50,
			RelationLimit: 50,
		},
		AI: AIConfig{
			Provider:     "gemini",
			Temperature:  0.1,
			Timeout:      30 * time.Second,
			AdvisoryRows: 500,
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
		},
		Import: ImportConfig{
			Source: "X-Wines.csv",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":15000"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.AI.RequireSelect = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
