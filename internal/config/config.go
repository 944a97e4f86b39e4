// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

// DefaultListen is the address the HTTP API binds when not configured.
const DefaultListen = "127.0.0.1:9728"

// Config is the top-level zrates configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Data    DataConfig    `mapstructure:"data"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig controls how the HTTP API listens.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`

	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty refuses all cross-origin requests.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// RateLimitRPS caps per-client request rates. Zero disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" validate:"min=0"`
}

// DataConfig locates the durable files (snapshot, request counter).
type DataConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// CacheConfig sets the per-kind fresh-cache TTLs.
type CacheConfig struct {
	MetalsTTL time.Duration `mapstructure:"metals_ttl" validate:"gt=0"`
	RatesTTL  time.Duration `mapstructure:"rates_ttl" validate:"gt=0"`
	EquityTTL time.Duration `mapstructure:"equity_ttl" validate:"gt=0"`
}

// FetchConfig controls the live-fetch attempt and the rates retry policy.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RetryAttempts  int           `mapstructure:"retry_attempts" validate:"min=1,max=5"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
}

// BreakerConfig sets the per-kind circuit breaker bounds.
type BreakerConfig struct {
	FailureThreshold int64         `mapstructure:"failure_threshold" validate:"min=1"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout" validate:"gt=0"`
}

// SourcesConfig holds per-source settings. Only metalprice-api needs any:
// every other upstream is keyless and unmetered.
type SourcesConfig struct {
	MetalPriceAPI MetalPriceAPIConfig `mapstructure:"metalpriceapi"`
}

// MetalPriceAPIConfig configures the one keyed, quota-metered source. An
// empty APIKey leaves the source unregistered; MonthlyLimit 0 disables
// metering.
type MetalPriceAPIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	MonthlyLimit int64  `mapstructure:"monthly_limit" validate:"min=0"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix ZRATES_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("data.dir", defaultDataDir())
	v.SetDefault("cache.metals_ttl", "5m")
	v.SetDefault("cache.rates_ttl", "1h")
	v.SetDefault("cache.equity_ttl", "5m")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.retry_attempts", 2)
	v.SetDefault("fetch.retry_base_delay", "500ms")
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.reset_timeout", "60s")
	v.SetDefault("sources.metalpriceapi.api_key", "")
	v.SetDefault("sources.metalpriceapi.monthly_limit", 100)

	// Environment
	v.SetEnvPrefix("ZRATES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, zrerr.Errorf(zrerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, zrerr.Errorf(zrerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns every
// validation error found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateTags()...)
	errs = append(errs, c.validateListen()...)

	return errs
}

// structValidator applies the `validate` struct tags. Field names in its
// errors are the yaml keys, taken from the mapstructure tags.
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

func (c *Config) validateTags() []error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{zrerr.Wrap(err, zrerr.CodeConfigValidateInvalidValue, "config structure check")}
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		errs = append(errs, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"config: %s fails %q constraint, got %v", key, fe.Tag(), fe.Value()))
	}
	return errs
}

func (c *Config) validateListen() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}
	_ = host // an empty host (":8080") binds all interfaces and is valid

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

// SnapshotPath is where the cascade's durable fallback snapshot lives.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Data.Dir, "snapshot.json")
}

// CounterPath is where the monthly request counter lives.
func (c *Config) CounterPath() string {
	return filepath.Join(c.Data.Dir, "requests.json")
}

// defaultDataDir resolves the default data directory, falling back to a
// relative directory when the home directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "zrates-data"
	}
	return filepath.Join(home, ".local", "share", "zrates")
}
