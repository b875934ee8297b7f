// Package config loads engine configuration from defaults, a YAML project
// file, and environment variables (spec §6.4).
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Executor holds the task-runtime defaults (spec §6.4).
type Executor struct {
	MaxWorkers        int `yaml:"max_workers"`
	DefaultTimeout    int `yaml:"default_timeout"`
	RetryAttempts     int `yaml:"retry_attempts"`
	RetryDelay        int `yaml:"retry_delay"`
	RetryBackoff      int `yaml:"retry_backoff"`
	AvailableCPU      int `yaml:"available_cpu"`
	AvailableMemoryGB int `yaml:"available_memory_gb"`
	AvailableGPU      int `yaml:"available_gpu"`
}

// Catalog holds catalog registration options (spec §6.4).
type Catalog struct {
	AutoRegister bool `yaml:"auto_register"`
}

// Security holds the encryption-at-rest option named in spec §6.4.
type Security struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// Cache holds cache backend selection (supplement, original_source/flux/cache.py).
type Cache struct {
	Backend    string `yaml:"backend"` // "memory" or "redis"
	DefaultTTL int    `yaml:"default_ttl"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
}

// Config is the fully-resolved configuration tree (spec §6.4).
type Config struct {
	DatabaseURL      string   `yaml:"database_url"`
	ServerHost       string   `yaml:"server_host"`
	ServerPort       int      `yaml:"server_port"`
	Home             string   `yaml:"home"`
	CachePath        string   `yaml:"cache_path"`
	LocalStoragePath string   `yaml:"local_storage_path"`
	Serializer       string   `yaml:"serializer"` // "json" or "binary"
	Executor         Executor `yaml:"executor"`
	Catalog          Catalog  `yaml:"catalog"`
	Security         Security `yaml:"security"`
	Cache            Cache    `yaml:"cache"`
}

// Default returns the built-in baseline configuration.
func Default() *Config {
	return &Config{
		DatabaseURL:      "memory://",
		ServerHost:       "localhost",
		ServerPort:       8000,
		Home:             ".flux",
		CachePath:        ".cache",
		LocalStoragePath: ".data",
		Serializer:       "json",
		Executor: Executor{
			MaxWorkers:    0, // not read by the engine: Parallel does not bound its goroutines
			RetryAttempts: 3,
			RetryDelay:    1,
			RetryBackoff:  2,
		},
		Cache: Cache{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
		},
	}
}

// Load resolves configuration: defaults, overlaid by path (if non-empty and
// present), overlaid by FLUX_-prefixed environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays FLUX_-prefixed, __-nested environment variables,
// mirroring original_source/flux/config.py's
// SettingsConfigDict(env_prefix="FLUX_", env_nested_delimiter="__").
func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("FLUX_DATABASE_URL", &cfg.DatabaseURL)
	str("FLUX_SERVER_HOST", &cfg.ServerHost)
	integer("FLUX_SERVER_PORT", &cfg.ServerPort)
	str("FLUX_HOME", &cfg.Home)
	str("FLUX_CACHE_PATH", &cfg.CachePath)
	str("FLUX_LOCAL_STORAGE_PATH", &cfg.LocalStoragePath)
	str("FLUX_SERIALIZER", &cfg.Serializer)
	integer("FLUX_EXECUTOR__MAX_WORKERS", &cfg.Executor.MaxWorkers)
	integer("FLUX_EXECUTOR__DEFAULT_TIMEOUT", &cfg.Executor.DefaultTimeout)
	integer("FLUX_EXECUTOR__RETRY_ATTEMPTS", &cfg.Executor.RetryAttempts)
	integer("FLUX_EXECUTOR__RETRY_DELAY", &cfg.Executor.RetryDelay)
	integer("FLUX_EXECUTOR__RETRY_BACKOFF", &cfg.Executor.RetryBackoff)
	integer("FLUX_EXECUTOR__AVAILABLE_CPU", &cfg.Executor.AvailableCPU)
	str("FLUX_SECURITY__ENCRYPTION_KEY", &cfg.Security.EncryptionKey)
	str("FLUX_CACHE__BACKEND", &cfg.Cache.Backend)
	str("FLUX_CACHE__REDIS_ADDR", &cfg.Cache.RedisAddr)

	if v, ok := os.LookupEnv("FLUX_CATALOG__AUTO_REGISTER"); ok {
		cfg.Catalog.AutoRegister = strings.EqualFold(v, "true") || v == "1"
	}
}
