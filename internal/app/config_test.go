package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:          defaultAddr,
		PathPrefix:    "/backend",
		Storage:       StoragePostgres,
		DatabaseURL:   "postgres://localhost/webshop",
		SessionTTL:    24 * time.Hour,
		SessionPepper: "pepper",
		BcryptCost:    10,
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.PathPrefix = "backend/"
	cfg.Storage = " Memory "
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "/backend", cfg.PathPrefix)
	assert.Equal(t, StorageMemory, cfg.Storage)
}

func TestConfig_ExplicitAddrWins(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg := validConfig()
	cfg.Addr = "127.0.0.1:7000"
	cfg.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	base := validConfig()
	require.NoError(t, base.validate())

	for name, mutate := range map[string]func(c *Config){
		"unknown storage":          func(c *Config) { c.Storage = "sqlite" },
		"postgres without url":     func(c *Config) { c.DatabaseURL = "" },
		"postgres without pepper":  func(c *Config) { c.SessionPepper = "" },
		"zero ttl":                 func(c *Config) { c.SessionTTL = 0 },
		"bcrypt cost too low":      func(c *Config) { c.BcryptCost = 1 },
		"admin without a password": func(c *Config) { c.Admin.Email = "ops@shop.example" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}

	t.Run("memory needs no database", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage = StorageMemory
		cfg.DatabaseURL = ""
		cfg.SessionPepper = ""
		assert.NoError(t, cfg.validate())
	})
}
