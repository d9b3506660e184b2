package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		StoreDriver:      DriverMemory,
		AdminPasscode:    "1234",
		AdminTTLMin:      480,
		ExpirationPolicy: "MANUAL",
		QRFormat:         "LEGACY",
		SweepInterval:    time.Minute,
		RetryAttempts:    3,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(*Config){
		"driver":          func(c *Config) { c.StoreDriver = "postgres" },
		"short passcode":  func(c *Config) { c.AdminPasscode = "123" },
		"long passcode":   func(c *Config) { c.AdminPasscode = "123456789" },
		"letter passcode": func(c *Config) { c.AdminPasscode = "12a4" },
		"policy":          func(c *Config) { c.ExpirationPolicy = "SOMETIMES" },
		"format":          func(c *Config) { c.QRFormat = "QR" },
		"ttl":             func(c *Config) { c.AdminTTLMin = 0 },
		"sweep":           func(c *Config) { c.SweepInterval = -time.Second },
		"retries":         func(c *Config) { c.RetryAttempts = 0 },
		"prod default":    func(c *Config) { c.Env = "prod" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidate_ProdAcceptsCustomPasscode(t *testing.T) {
	c := validConfig()
	c.Env = "prod"
	c.AdminPasscode = "804217"
	assert.NoError(t, c.Validate())
}

func TestLoad_MemoryDriverSkipsDatabaseVars(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ADMIN_PASSCODE", "987654")
	t.Setenv("EXPIRATION_POLICY", "auto")
	t.Setenv("SWEEP_INTERVAL", "0s")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "AUTO", cfg.ExpirationPolicy)
	assert.Equal(t, "LEGACY", cfg.QRFormat)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
	assert.Equal(t, 480, cfg.AdminTTLMin)
	assert.Empty(t, cfg.DBHost)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, "kiosk:rl", c.Prefix)
}

func TestLoadLoginRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "100")
	c := LoadLoginRateLimitConfig()
	assert.True(t, c.Enabled)
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, time.Minute, c.RefillInterval)
	assert.Equal(t, "ip", c.KeyStrategy)
	assert.Equal(t, "kiosk:auth", c.Prefix)

	t.Setenv("LOGIN_RATE_LIMIT_CAPACITY", "3")
	assert.Equal(t, 3, LoadLoginRateLimitConfig().Capacity)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head,")
	c := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.True(t, c.Enabled)
}
