package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (WEBSHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	PathPrefix    string        `default:"/backend" usage:"Path prefix of all API routes" flag:"path-prefix"`
	Storage       string        `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL   string        `usage:"PostgreSQL connection URL (WEBSHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SessionTTL    time.Duration `default:"24h" usage:"Lifetime of issued sessions" flag:"session-ttl"`
	SessionPepper string        `usage:"HMAC pepper for session token hashing (WEBSHOP_SESSION_PEPPER)" flag:"session-pepper"`
	SessionSweep  time.Duration `default:"10m" usage:"Interval between expired session sweeps, 0 disables" flag:"session-sweep"`
	BcryptCost    int           `default:"10" usage:"bcrypt cost for password hashes" flag:"bcrypt-cost"`
	Admin         AdminConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// AdminConfig names the operator account ensured at startup. Empty Email
// skips the bootstrap.
type AdminConfig struct {
	Email    string `usage:"Operator account email" flag:"admin-email"`
	Password string `usage:"Operator account password" flag:"admin-password"`
	Name     string `default:"Operator" usage:"Operator display name" flag:"admin-name"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "WEBSHOP",
		Files:     []string{"config.yaml", "/etc/webshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's WEBSHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	c.PathPrefix = "/" + strings.Trim(c.PathPrefix, "/")
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set WEBSHOP_DATABASE_URL or DATABASE_URL")
		}
		if c.SessionPepper == "" {
			return errors.New("session pepper is required with postgres storage: set WEBSHOP_SESSION_PEPPER")
		}
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if c.SessionTTL <= 0 {
		return errors.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin password is required when admin email is set")
	}
	return nil
}
