package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/movie-discovery-api/shared/logger"
)

// MovieServiceConfig holds the configuration of the movie service.
type MovieServiceConfig struct {
	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	GRPC      GRPCConfig      `envPrefix:"GRPC_"`
	Mongo     MongoConfig     `envPrefix:"MONGODB_"`
	Catalog   CatalogConfig   `envPrefix:"CATALOG_"`
	Identity  IdentityConfig  `envPrefix:"IDENTITY_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Webhook   WebhookConfig   `envPrefix:"WEBHOOK_"`
	CORS      CORSConfig      `envPrefix:"CORS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Log       logger.Config   `envPrefix:"LOG_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type GRPCConfig struct {
	Addr                string        `env:"ADDR"                  envDefault:":9090"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"10s"`
}

type MongoConfig struct {
	URI            string        `env:"URI"`
	Database       string        `env:"DATABASE"        envDefault:"movie-discovery"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
}

type CatalogConfig struct {
	BaseURL        string        `env:"BASE_URL"        envDefault:"https://api.themoviedb.org/3"`
	APIKey         string        `env:"API_KEY"`
	Language       string        `env:"LANGUAGE"        envDefault:"en-US"`
	CacheTTL       time.Duration `env:"CACHE_TTL"       envDefault:"5m"`
	CacheSize      int           `env:"CACHE_SIZE"      envDefault:"1024"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RateLimit      float64       `env:"RATE_LIMIT"      envDefault:"40"`
	RateBurst      int           `env:"RATE_BURST"      envDefault:"20"`
}

type IdentityConfig struct {
	APIURL         string        `env:"API_URL"         envDefault:"https://api.clerk.com/v1"`
	SecretKey      string        `env:"SECRET_KEY"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

type SessionConfig struct {
	Secret   string `env:"SECRET"`
	Issuer   string `env:"ISSUER"`
	Audience string `env:"AUDIENCE" envDefault:"movie-discovery"`
}

type WebhookConfig struct {
	SigningSecret string `env:"SIGNING_SECRET"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

type RateLimitConfig struct {
	Requests int           `env:"REQUESTS" envDefault:"100"`
	Window   time.Duration `env:"WINDOW"   envDefault:"1m"`
}

// Load parses the configuration from environment variables and validates it.
func Load() (*MovieServiceConfig, error) {
	cfg, err := env.ParseAs[MovieServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *MovieServiceConfig) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("missing MONGODB_URI environment variable")
	}
	if c.Catalog.APIKey == "" {
		return fmt.Errorf("missing CATALOG_API_KEY environment variable")
	}
	if c.Identity.SecretKey == "" {
		return fmt.Errorf("missing IDENTITY_SECRET_KEY environment variable")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("missing SESSION_SECRET environment variable")
	}
	if c.Session.Issuer == "" {
		return fmt.Errorf("missing SESSION_ISSUER environment variable")
	}
	if c.Webhook.SigningSecret == "" {
		return fmt.Errorf("missing WEBHOOK_SIGNING_SECRET environment variable")
	}
	if c.Catalog.CacheTTL <= 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL must be positive")
	}
	if c.Catalog.RateLimit <= 0 || c.Catalog.RateBurst <= 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT and CATALOG_RATE_BURST must be positive")
	}

	return nil
}
