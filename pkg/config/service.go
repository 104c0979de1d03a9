package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix prefixes every service environment override, e.g. TODO_LOG_LEVEL
const EnvPrefix = "TODO"

// Config is the todo service configuration
type Config struct {
	Port            int           `yaml:"port" json:"port" validate:"gte=0,lte=65535"`
	Environment     string        `yaml:"environment" json:"environment" validate:"required"`
	LogLevel        string        `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	StaticDir       string        `yaml:"static_dir" json:"static_dir" validate:"omitempty,dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	MaxInFlight     int           `yaml:"max_in_flight" json:"max_in_flight" validate:"gte=0"`

	CORS      CORSConfig      `yaml:"cors" json:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	NATS      NATSConfig      `yaml:"nats" json:"nats"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// CORSConfig lists origins allowed to call the API; empty disables CORS
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// RateLimitConfig configures per-client limiting; 0 disables it
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
	Burst             int `yaml:"burst" json:"burst" validate:"gte=0"`
}

// NATSConfig configures event publishing; an empty URL disables it
type NATSConfig struct {
	URL    string `yaml:"url" json:"url" validate:"omitempty,url"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Exporter       string  `yaml:"exporter" json:"exporter" validate:"oneof=none stdout zipkin"`
	ZipkinEndpoint string  `yaml:"zipkin_endpoint" json:"zipkin_endpoint" validate:"omitempty,url"`
	ServiceName    string  `yaml:"service_name" json:"service_name"`
	SampleRatio    float64 `yaml:"sample_ratio" json:"sample_ratio" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when no file or variable
// overrides a value.
func Default() Config {
	return Config{
		Port:            3000,
		Environment:     "development",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
		},
		NATS: NATSConfig{
			Prefix: "todos",
		},
		Tracing: TracingConfig{
			Exporter:       "none",
			ZipkinEndpoint: "http://localhost:9411/api/v2/spans",
			ServiceName:    "todo-service",
			SampleRatio:    1,
		},
	}
}

// LoadService builds the effective configuration: defaults, then the file
// at path (if any), then TODO_* variables, then PORT and NODE_ENV.
func LoadService(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := Load(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnvOverrides(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := cfg.applyCompatEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyCompatEnv honours the plain PORT and NODE_ENV variables
func (c *Config) applyCompatEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		c.Environment = v
	}
	return nil
}

// Validate checks the configuration's struct constraints
func (c *Config) Validate() error {
	return Validate(c, StructTags())
}

// Addr returns the listen address for Port
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
