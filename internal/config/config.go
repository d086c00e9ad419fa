package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	WarmMonths            []string

	StorePath           string
	StoreTimeout        time.Duration
	StoreRetryAttempts  int
	StoreRetryBaseDelay time.Duration
	StoreRetryMaxDelay  time.Duration

	GeneratorSeed   int64
	Coalesce        bool
	CoalesceTimeout time.Duration

	TextAPIURL              string
	TextAPIKey              string
	TextAPITimeout          time.Duration
	TextRetryAttempts       int
	TextRetryBaseDelay      time.Duration
	TextRetryMaxDelay       time.Duration
	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration

	DownloadDir     string
	DownloadMaxAge  time.Duration
	CleanupInterval time.Duration

	StaticDir string

	ReferenceDataDir string
	ImportOnStart    bool

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		WarmMonths []string `yaml:"warm_months"`
	} `yaml:"cache"`

	Store struct {
		Path    string `yaml:"path"`
		Timeout string `yaml:"timeout"`
		Retry   struct {
			MaxAttempts int    `yaml:"max_attempts"`
			BaseDelay   string `yaml:"base_delay"`
			MaxDelay    string `yaml:"max_delay"`
		} `yaml:"retry"`
	} `yaml:"store"`

	Generation struct {
		Seed            int64  `yaml:"seed"`
		Coalesce        *bool  `yaml:"coalesce"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
	} `yaml:"generation"`

	TextAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Retry   struct {
			MaxAttempts int    `yaml:"max_attempts"`
			BaseDelay   string `yaml:"base_delay"`
			MaxDelay    string `yaml:"max_delay"`
		} `yaml:"retry"`
		Breaker struct {
			FailureThreshold int    `yaml:"failure_threshold"`
			OpenTimeout      string `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"text_api"`

	Downloads struct {
		Dir             string `yaml:"dir"`
		MaxAge          string `yaml:"max_age"`
		CleanupInterval string `yaml:"cleanup_interval"`
	} `yaml:"downloads"`

	Images struct {
		StaticDir string `yaml:"static_dir"`
	} `yaml:"images"`

	Reference struct {
		DataDir       string `yaml:"data_dir"`
		ImportOnStart *bool  `yaml:"import_on_start"`
	} `yaml:"reference"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`
}

// envOverrides are environment variables that take precedence over the YAML file.
type envOverrides struct {
	Port           string `env:"PORT"`
	CacheBackend   string `env:"CACHE_BACKEND"`
	MemcachedAddrs string `env:"MEMCACHED_ADDRS"`
	StorePath      string `env:"STORE_PATH"`
	TextAPIURL     string `env:"TEXT_API_URL"`
	TextAPIKey     string `env:"TEXT_API_KEY"`
	GeneratorSeed  int64  `env:"GENERATOR_SEED"`
}

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working
// directory. A .env file in the working directory is loaded first; variables
// already set in the process environment win over it. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	name := os.Getenv("ENV_NAME")
	if name == "" {
		name = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", name+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := fromFile(fc)
	applyOverrides(cfg, ov)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = orDefault(fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.MemcachedAddrs = orDefault(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = positiveOr(fc.Cache.Memcached.MaxIdleConns, 2)
	cfg.WarmMonths = fc.Cache.WarmMonths

	cfg.StorePath = orDefault(fc.Store.Path, "data/apiverse.db")
	cfg.StoreTimeout = parseDuration(fc.Store.Timeout, 2*time.Second)
	cfg.StoreRetryAttempts = positiveOr(fc.Store.Retry.MaxAttempts, 3)
	cfg.StoreRetryBaseDelay = parseDuration(fc.Store.Retry.BaseDelay, 50*time.Millisecond)
	cfg.StoreRetryMaxDelay = parseDuration(fc.Store.Retry.MaxDelay, time.Second)

	cfg.GeneratorSeed = fc.Generation.Seed
	cfg.Coalesce = true
	if fc.Generation.Coalesce != nil {
		cfg.Coalesce = *fc.Generation.Coalesce
	}
	cfg.CoalesceTimeout = parseDuration(fc.Generation.CoalesceTimeout, 5*time.Second)

	cfg.TextAPIURL = strings.TrimSpace(fc.TextAPI.URL)
	cfg.TextAPITimeout = parseDurationOrZero(fc.TextAPI.Timeout, 3*time.Second)
	cfg.TextRetryAttempts = positiveOr(fc.TextAPI.Retry.MaxAttempts, 3)
	cfg.TextRetryBaseDelay = parseDuration(fc.TextAPI.Retry.BaseDelay, 100*time.Millisecond)
	cfg.TextRetryMaxDelay = parseDuration(fc.TextAPI.Retry.MaxDelay, 2*time.Second)
	cfg.BreakerFailureThreshold = positiveOr(fc.TextAPI.Breaker.FailureThreshold, 5)
	cfg.BreakerOpenTimeout = parseDuration(fc.TextAPI.Breaker.OpenTimeout, 30*time.Second)

	cfg.DownloadDir = orDefault(fc.Downloads.Dir, "downloads")
	cfg.DownloadMaxAge = parseDuration(fc.Downloads.MaxAge, 24*time.Hour)
	cfg.CleanupInterval = parseDuration(fc.Downloads.CleanupInterval, time.Hour)

	cfg.StaticDir = orDefault(fc.Images.StaticDir, "static")

	cfg.ReferenceDataDir = strings.TrimSpace(fc.Reference.DataDir)
	cfg.ImportOnStart = true
	if fc.Reference.ImportOnStart != nil {
		cfg.ImportOnStart = *fc.Reference.ImportOnStart
	}

	cfg.RateLimitRPS = positiveOr(fc.Reliability.RateLimitRPS, 100)
	cfg.RateLimitBurst = positiveOr(fc.Reliability.RateLimitBurst, 250)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = positiveOr(fc.Health.DegradedErrorPct, 5)
	return cfg
}

func applyOverrides(cfg *Config, ov envOverrides) {
	if v := strings.TrimSpace(ov.Port); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(strings.ToLower(ov.CacheBackend)); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(ov.MemcachedAddrs); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(ov.StorePath); v != "" {
		cfg.StorePath = v
	}
	if v := strings.TrimSpace(ov.TextAPIURL); v != "" {
		cfg.TextAPIURL = v
	}
	if ov.TextAPIKey != "" {
		cfg.TextAPIKey = ov.TextAPIKey
	}
	if ov.GeneratorSeed != 0 {
		cfg.GeneratorSeed = ov.GeneratorSeed
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func positiveOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unusable values. RequestTimeout is raised above the text
// backend timeout when a backend is configured.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.TextAPIURL != "" {
		if cfg.TextAPITimeout <= 0 {
			return fmt.Errorf("text_api.timeout must be positive")
		}
		if cfg.RequestTimeout <= cfg.TextAPITimeout {
			cfg.RequestTimeout = cfg.TextAPITimeout + time.Second
		}
	}
	for _, m := range cfg.WarmMonths {
		if _, err := time.Parse("2006-01", m); err != nil {
			return fmt.Errorf("cache.warm_months: invalid month %q (want YYYY-MM)", m)
		}
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
