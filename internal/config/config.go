// Package config loads the service configuration from the environment (and an
// optional JSON file) into typed structs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jinzhu/configor"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	DB        DBConfig
	Postgres  PostgresConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name string `default:"streamify" env:"APP_NAME"`
	// Env is one of development / production. Production marks cookies Secure.
	Env            string `default:"development" env:"APP_ENV"`
	Port           int    `default:"5001" env:"PORT"`
	FrontendOrigin string `default:"http://localhost:5173" env:"FRONTEND_ORIGIN"`
	LogLevel       string `default:"info" env:"LOG_LEVEL"`
}

// Production reports whether the service runs in production mode.
func (a AppConfig) Production() bool {
	switch strings.ToLower(a.Env) {
	case "prod", "production":
		return true
	}
	return false
}

type AuthConfig struct {
	// TokenExpireTime is a Go duration; "never" or "0" disables expiry.
	TokenExpireTime string `default:"168h" env:"TOKEN_EXPIRE_TIME"`
	// KeySeed is a base64 ed25519 seed. Empty generates a key at boot, which
	// invalidates sessions on restart.
	KeySeed    string `env:"JWT_KEY_SEED"`
	CookieName string `default:"auth_token" env:"AUTH_COOKIE_NAME"`
}

// TokenTTL parses TokenExpireTime. Zero means tokens never expire.
func (a AuthConfig) TokenTTL() (time.Duration, error) {
	switch a.TokenExpireTime {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(a.TokenExpireTime)
	if err != nil {
		return 0, fmt.Errorf("parse TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

type DBConfig struct {
	// Driver is mongo, postgres or memory.
	Driver string `default:"mongo" env:"DB_DRIVER"`
}

type PostgresConfig struct {
	URL      string `env:"DATABASE_URL"`
	User     string `default:"postgres" env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `default:"localhost" env:"PG_HOST"`
	Port     string `default:"5432" env:"PG_PORT"`
	Database string `default:"streamify" env:"PG_DATABASE"`
	SSLMode  string `default:"disable" env:"PG_SSLMODE"`
}

// DSN returns URL when set, otherwise builds one from the parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type MongoConfig struct {
	URI         string `default:"mongodb://localhost:27017" env:"MONGO_URI"`
	Database    string `default:"streamify" env:"MONGO_DATABASE"`
	MaxPoolSize uint64 `default:"100" env:"MONGO_MAX_POOL_SIZE"`
}

type RedisConfig struct {
	// Addr empty disables redis; the service then uses in-process pub/sub and
	// an in-process session denylist.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `default:"0" env:"REDIS_DB"`
}

type ChatConfig struct {
	APIKey    string `env:"STREAM_API_KEY"`
	APISecret string `env:"STREAM_API_SECRET"`
	BaseURL   string `default:"https://chat.stream-io-api.com" env:"STREAM_BASE_URL"`
	// TokenExpireTime for chat tokens; empty issues non-expiring tokens.
	TokenExpireTime string `env:"STREAM_TOKEN_EXPIRE_TIME"`
}

// Enabled reports whether credentials for the hosted chat service are present.
func (c ChatConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type RateLimitConfig struct {
	AuthRequests  int `default:"5" env:"RATELIMIT_AUTH_REQUESTS"`
	AuthWindowSec int `default:"60" env:"RATELIMIT_AUTH_WINDOW_SEC"`
	AuthBurst     int `default:"5" env:"RATELIMIT_AUTH_BURST"`
	// TrustProxy keys rate limits on X-Forwarded-For. Enable only behind a
	// reverse proxy that sets the header itself.
	TrustProxy bool `default:"false" env:"TRUST_PROXY"`
}

// Load reads the configuration. Files that do not exist are skipped; the
// environment always wins over file values.
func Load(files ...string) (*Config, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	cfg := &Config{}
	loader := configor.New(&configor.Config{Silent: true})
	if err := loader.Load(cfg, existing...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values configor cannot express with tags.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mongo", "postgres", "memory":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want mongo, postgres or memory", c.DB.Driver)
	}
	if _, err := c.Auth.TokenTTL(); err != nil {
		return err
	}
	if c.Chat.TokenExpireTime != "" {
		if _, err := time.ParseDuration(c.Chat.TokenExpireTime); err != nil {
			return fmt.Errorf("parse STREAM_TOKEN_EXPIRE_TIME: %w", err)
		}
	}
	return nil
}
