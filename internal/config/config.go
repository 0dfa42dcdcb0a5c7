// Package config resolves client settings from defaults, an optional YAML
// file, HAGGLE_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "https://negotiation-bot-pgn2.onrender.com"
	DefaultProductID      = "1"
	DefaultProductName    = "Product"
	DefaultListPrice      = 1000
	DefaultCurrency       = "₹"
	DefaultTimeoutSeconds = 60
	MaxTimeoutSeconds     = 600
)

type Config struct {
	Service ServiceConfig `yaml:"service"`
	Product ProductConfig `yaml:"product"`
	User    UserConfig    `yaml:"user"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

type ServiceConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ProductConfig struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	ListPrice float64 `yaml:"list_price"`
	Currency  string  `yaml:"currency"`
}

type UserConfig struct {
	Name string `yaml:"name"`
}

type ArchiveConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{BaseURL: DefaultBaseURL, TimeoutSeconds: DefaultTimeoutSeconds},
		Product: ProductConfig{
			ID:        DefaultProductID,
			Name:      DefaultProductName,
			ListPrice: DefaultListPrice,
			Currency:  DefaultCurrency,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Timeout is the per-call deadline; zero means none.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Service.TimeoutSeconds) * time.Second
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(cfg Config, path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ApplyEnv overlays HAGGLE_* variables onto cfg.
func ApplyEnv(cfg Config) Config {
	cfg.Service.BaseURL = envOr("HAGGLE_BASE_URL", cfg.Service.BaseURL)
	cfg.Service.TimeoutSeconds = envOrInt("HAGGLE_TIMEOUT", cfg.Service.TimeoutSeconds)
	cfg.Product.ID = envOr("HAGGLE_PRODUCT_ID", cfg.Product.ID)
	cfg.Product.Name = envOr("HAGGLE_PRODUCT_NAME", cfg.Product.Name)
	cfg.Product.ListPrice = envOrFloat("HAGGLE_LIST_PRICE", cfg.Product.ListPrice)
	cfg.Product.Currency = envOr("HAGGLE_CURRENCY", cfg.Product.Currency)
	cfg.User.Name = envOr("HAGGLE_USER", cfg.User.Name)
	cfg.Archive.Path = envOr("HAGGLE_ARCHIVE_DB", cfg.Archive.Path)
	cfg.Log.File = envOr("HAGGLE_LOG_FILE", cfg.Log.File)
	cfg.Log.Level = envOr("HAGGLE_LOG_LEVEL", cfg.Log.Level)
	return cfg
}

// Normalize trims values, fills blanks with defaults and validates the
// result.
func Normalize(cfg Config) (Config, error) {
	cfg.Service.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Service.BaseURL), "/")
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(cfg.Service.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return cfg, errors.Errorf("service base url %q must be an absolute http(s) url", cfg.Service.BaseURL)
	}
	cfg.Service.TimeoutSeconds = clampInt(cfg.Service.TimeoutSeconds, 0, MaxTimeoutSeconds)

	cfg.Product.ID = nullCoalesce(strings.TrimSpace(cfg.Product.ID), DefaultProductID)
	cfg.Product.Name = nullCoalesce(strings.TrimSpace(cfg.Product.Name), DefaultProductName)
	cfg.Product.Currency = nullCoalesce(strings.TrimSpace(cfg.Product.Currency), DefaultCurrency)
	if cfg.Product.ListPrice <= 0 {
		return cfg, errors.Errorf("product list price must be positive, got %v", cfg.Product.ListPrice)
	}

	cfg.User.Name = strings.TrimSpace(cfg.User.Name)
	cfg.Archive.Path = strings.TrimSpace(cfg.Archive.Path)
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	cfg.Log.Level = strings.ToLower(nullCoalesce(strings.TrimSpace(cfg.Log.Level), "info"))
	return cfg, nil
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// EnvOrBool reads a boolean flag default from the environment.
func EnvOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func nullCoalesce(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
