package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/foodshare")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("DELIVERY_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 3*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:     StoreConfig{Driver: StoreMemory},
			Auth:      AuthConfig{JWTSecret: "s"},
			RateLimit: RateLimitConfig{RPS: 1, Burst: 1},
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Store.Driver = StorePostgres
	assert.Error(t, c.Validate(), "postgres needs a url")

	c = base()
	c.Store.Driver = "mongo"
	assert.Error(t, c.Validate())

	c = base()
	c.Auth.JWTSecret = ""
	assert.Error(t, c.Validate())

	c = base()
	c.RateLimit.Burst = 0
	assert.Error(t, c.Validate())
}
