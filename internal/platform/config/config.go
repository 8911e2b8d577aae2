package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultAPITimeout     = 8 * time.Second
	defaultCartCacheTTL   = 30 * 24 * time.Hour
	defaultQuoteDebounce  = 500 * time.Millisecond
	defaultSnapshotTTL    = time.Hour
	defaultEnvironment    = "local"
	defaultCacheDirSuffix = "hiedra-web"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	API         APIConfig      `yaml:"api"`
	Cache       CacheConfig    `yaml:"cache"`
	Quote       QuoteConfig    `yaml:"quote"`
	Checkout    CheckoutConfig `yaml:"checkout"`
	Session     SessionConfig  `yaml:"session"`
	Environment string         `yaml:"environment"`
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// APIConfig points at the remote storefront services.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the durable client-side cart cache.
type CacheConfig struct {
	Dir     string        `yaml:"dir"`
	CartTTL time.Duration `yaml:"cart_ttl"`
}

// QuoteConfig tunes the price-quote debouncer.
type QuoteConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// CheckoutConfig bounds the redirect snapshot lifetime.
type CheckoutConfig struct {
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	SigningKey string `yaml:"signing_key"`
}

// Load reads the optional YAML file named by HIEDRA_WEB_CONFIG, applies
// environment overrides, then fills defaults.
func Load() (Config, error) {
	var cfg Config

	if path := strings.TrimSpace(os.Getenv("HIEDRA_WEB_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "HIEDRA_WEB_PORT", "PORT")
	setString(&cfg.API.BaseURL, "HIEDRA_WEB_API_BASE_URL")
	setString(&cfg.Cache.Dir, "HIEDRA_WEB_CACHE_DIR")
	setString(&cfg.Session.SigningKey, "HIEDRA_WEB_SESSION_SIGNING_KEY")
	setString(&cfg.Environment, "HIEDRA_WEB_ENV")
	setDuration(&cfg.API.Timeout, "HIEDRA_WEB_API_TIMEOUT")
	setDuration(&cfg.Cache.CartTTL, "HIEDRA_WEB_CART_CACHE_TTL")
	setDuration(&cfg.Quote.Debounce, "HIEDRA_WEB_QUOTE_DEBOUNCE")
	setDuration(&cfg.Checkout.SnapshotTTL, "HIEDRA_WEB_SNAPSHOT_TTL")
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Port) == "" {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = defaultAPITimeout
	}
	if cfg.Cache.CartTTL <= 0 {
		cfg.Cache.CartTTL = defaultCartCacheTTL
	}
	if strings.TrimSpace(cfg.Cache.Dir) == "" {
		cfg.Cache.Dir = filepath.Join(os.TempDir(), defaultCacheDirSuffix)
	}
	if cfg.Quote.Debounce <= 0 {
		cfg.Quote.Debounce = defaultQuoteDebounce
	}
	if cfg.Checkout.SnapshotTTL <= 0 {
		cfg.Checkout.SnapshotTTL = defaultSnapshotTTL
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = defaultEnvironment
	}
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*dst = value
			return
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		*dst = parsed
		return
	}
	// Bare integers are read as milliseconds.
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}
