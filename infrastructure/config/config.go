// Package config loads process configuration from the environment and an optional
// YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `env:"SERVER_ADDRESS" envDefault:":8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"25s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Storage
	StoreBackend       string        `env:"STORE_BACKEND" envDefault:"dynamodb"`
	AWSRegion          string        `env:"AWS_REGION" envDefault:"us-west-2"`
	TableName          string        `env:"TABLE_NAME" envDefault:"ontology-nodes"`
	IndexName          string        `env:"INDEX_NAME" envDefault:"GSI1"`
	ChangelogTableName string        `env:"CHANGELOG_TABLE_NAME" envDefault:"ontology-changelog"`
	ChangelogRetention time.Duration `env:"CHANGELOG_RETENTION"`

	// Events
	EventBusName string `env:"EVENT_BUS_NAME"`

	// Read cache; empty RedisURL selects the in-process cache
	EnableCache bool   `env:"ENABLE_CACHE" envDefault:"false"`
	RedisURL    string `env:"REDIS_URL"`
	CachePrefix string `env:"CACHE_PREFIX" envDefault:"ontology:"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Authentication
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"ontology"`

	// Rate limiting per user; counters live in Redis when REDIS_URL is set
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"200"`

	// Lambda; TrustGateway accepts the API Gateway authorizer identity
	IsLambda     bool `env:"IS_LAMBDA" envDefault:"false"`
	TrustGateway bool `env:"TRUST_GATEWAY_AUTH" envDefault:"false"`

	// Feature flags
	EnableMetrics    bool   `env:"ENABLE_METRICS" envDefault:"false"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"Ontology"`
	EnableTracing    bool   `env:"ENABLE_TRACING" envDefault:"false"`
}

// LoadConfig loads configuration from the process environment. When CONFIG_FILE
// names a YAML file its keys are used as values for variables the environment
// does not set.
func LoadConfig() (*Config, error) {
	environ := env.ToMap(os.Environ())
	return load(environ)
}

func load(environ map[string]string) (*Config, error) {
	if path := environ["CONFIG_FILE"]; path != "" {
		fileValues, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			if _, set := environ[k]; !set {
				environ[k] = v
			}
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readYAML reads a flat mapping of variable names to scalar or list values.
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			values[strings.ToUpper(k)] = strings.Join(parts, ",")
		case map[string]interface{}:
			return nil, fmt.Errorf("config file %s: key %s must be a scalar or list", path, k)
		default:
			values[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return values, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendDynamoDB:
		if c.TableName == "" || c.ChangelogTableName == "" {
			return fmt.Errorf("TABLE_NAME and CHANGELOG_TABLE_NAME are required for the dynamodb backend")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.ChangelogRetention < 0 {
		return fmt.Errorf("CHANGELOG_RETENTION must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StoreBackend == StoreBackendMemory {
			return fmt.Errorf("the memory store backend is not allowed in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
