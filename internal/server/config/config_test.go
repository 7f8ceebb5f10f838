package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":5001", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 3, c.LockoutThreshold)
	assert.Equal(t, 5*time.Minute, c.LockoutDuration)
	assert.Equal(t, time.Hour, c.CSRFTokenTTL)
	assert.Equal(t, 10*time.Minute, c.SweepInterval)
	assert.Equal(t, RateLimitRule{Max: 5, Window: 15 * time.Minute}, c.LoginRateLimit)
	assert.Equal(t, RateLimitRule{Max: 3, Window: time.Hour}, c.SignupRateLimit)
	assert.Equal(t, RateLimitRule{Max: 5, Window: time.Hour}, c.PasswordChangeRateLimit)
	assert.Equal(t, "memory", c.TokenStore)
	assert.Equal(t, []string{"*"}, c.CORSAllowedOrigins)
	assert.True(t, c.SeedDemoData)
	assert.False(t, c.ServerSideRoles)
}

func TestLoad_NoArgsUsesDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoad_FlagsOverrideJSON(t *testing.T) {
	path := writeTempJSON(t, t.TempDir(), "cfg.json", map[string]any{
		"endpoint_addr_http": ":7000",
		"log_level":          "debug",
	})

	c, err := Load([]string{"-c", path, "-a", ":8000"})
	require.NoError(t, err)

	assert.Equal(t, ":8000", c.EndpointAddrHTTP)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load([]string{"-c", "/does/not/exist.json"})
	require.Error(t, err)
}
