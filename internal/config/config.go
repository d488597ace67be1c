// Package config loads the optional colstore.yaml client configuration.
// With no file present, the client runs with hard-coded defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for every ClientOptions field, per the wire contract in
// colstore.yaml (§6.1).
const (
	DefaultMaxConnections  = 5000
	DefaultConnectTimeout  = 3 * time.Second
	DefaultRequestTimeout  = 3 * time.Second
	DefaultActorCount      = 10
	DefaultRetryMaxElapsed = 10 * time.Second
	DefaultRetryBaseDelay  = 10 * time.Millisecond
	DefaultRetryMaxDelay   = 2 * time.Second
)

// RetryOptions is the retry.Config sub-document of ClientOptions.
type RetryOptions struct {
	MaxElapsed time.Duration `yaml:"max_elapsed"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// ClientOptions is the top-level colstore.yaml configuration.
type ClientOptions struct {
	MaxConnections int           `yaml:"max_connections"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ActorCount     int           `yaml:"actor_count"`
	Retry          RetryOptions  `yaml:"retry"`
	// DebugAddr, when non-empty, starts internal/debugserver on this
	// address. Empty disables it.
	DebugAddr string `yaml:"debug_addr"`
}

// DefaultClientOptions returns the hard-coded defaults applied when no
// config file is present and no field is overridden by environment
// variables.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		MaxConnections: DefaultMaxConnections,
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
		ActorCount:     DefaultActorCount,
		Retry: RetryOptions{
			MaxElapsed: DefaultRetryMaxElapsed,
			BaseDelay:  DefaultRetryBaseDelay,
			MaxDelay:   DefaultRetryMaxDelay,
		},
		DebugAddr: "",
	}
}

// Load parses a colstore.yaml file, falling back to defaults for any
// field the file omits, then applies environment variable overrides.
// If path is empty, returns defaults overridden only by env vars.
func Load(path string) (*ClientOptions, error) {
	cfg := DefaultClientOptions()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath finds the config file path. Priority: COLSTORE_CONFIG env
// var > ./colstore.yaml > "" (defaults only).
func ResolvePath() string {
	if p := os.Getenv("COLSTORE_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("colstore.yaml"); err == nil {
		return "colstore.yaml"
	}
	return ""
}

func applyEnvOverrides(cfg *ClientOptions) {
	cfg.MaxConnections = envInt("COLSTORE_MAX_CONNECTIONS", cfg.MaxConnections)
	cfg.ConnectTimeout = envDuration("COLSTORE_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.RequestTimeout = envDuration("COLSTORE_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ActorCount = envInt("COLSTORE_ACTOR_COUNT", cfg.ActorCount)
	cfg.Retry.MaxElapsed = envDuration("COLSTORE_RETRY_MAX_ELAPSED", cfg.Retry.MaxElapsed)
	cfg.Retry.BaseDelay = envDuration("COLSTORE_RETRY_BASE_DELAY", cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = envDuration("COLSTORE_RETRY_MAX_DELAY", cfg.Retry.MaxDelay)
	if v := os.Getenv("COLSTORE_DEBUG_ADDR"); v != "" {
		cfg.DebugAddr = v
	}
}

// validate enforces the positivity constraints every ClientOptions field
// needs to be usable.
func (c *ClientOptions) validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("config: max_connections must be > 0, got %d", c.MaxConnections)
	}
	if c.ActorCount <= 0 {
		return fmt.Errorf("config: actor_count must be > 0, got %d", c.ActorCount)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("config: connect_timeout must be > 0, got %s", c.ConnectTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be > 0, got %s", c.RequestTimeout)
	}
	if c.Retry.MaxElapsed <= 0 || c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay <= 0 {
		return fmt.Errorf("config: retry.max_elapsed/base_delay/max_delay must all be > 0")
	}
	return nil
}

// envInt reads an integer from an environment variable, returning
// defaultVal if unset or invalid.
func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return n
}

// envDuration reads a Go duration from an environment variable,
// returning defaultVal if unset or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return d
}
