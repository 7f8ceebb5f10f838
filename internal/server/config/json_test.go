package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"endpoint_addr_http":         ":9000",
		"endpoint_addr_grpc":         "",
		"database_driver":            "postgres",
		"database_dsn":               "postgres://u:p@db:5432/notes",
		"bcrypt_cost":                12,
		"lockout_threshold":          5,
		"lockout_duration":           "10m",
		"csrf_token_ttl":             "30m",
		"sweep_interval":             60000000000,
		"login_rate_limit":           map[string]any{"max": 10, "window": "5m"},
		"signup_rate_limit":          map[string]any{"max": 1, "window": "1h"},
		"password_change_rate_limit": map[string]any{"max": 2, "window": "2h"},
		"token_store":                "redis",
		"redis_addr":                 "redis:6379",
		"redis_password":             "pw",
		"cors_allowed_origins":       []string{"http://localhost:3000"},
		"log_level":                  "warn",
		"tracing_endpoint":           "otel:4318",
		"seed_demo_data":             false,
		"server_side_roles":          true,
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", full}))

		assert.Equal(t, ":9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres", cfg.DatabaseDriver)
		assert.Equal(t, "postgres://u:p@db:5432/notes", cfg.DatabaseDSN)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.Equal(t, 5, cfg.LockoutThreshold)
		assert.Equal(t, 10*time.Minute, cfg.LockoutDuration)
		assert.Equal(t, 30*time.Minute, cfg.CSRFTokenTTL)
		assert.Equal(t, time.Minute, cfg.SweepInterval)
		assert.Equal(t, RateLimitRule{Max: 10, Window: 5 * time.Minute}, cfg.LoginRateLimit)
		assert.Equal(t, RateLimitRule{Max: 1, Window: time.Hour}, cfg.SignupRateLimit)
		assert.Equal(t, RateLimitRule{Max: 2, Window: 2 * time.Hour}, cfg.PasswordChangeRateLimit)
		assert.Equal(t, "redis", cfg.TokenStore)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "pw", cfg.RedisPassword)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, "otel:4318", cfg.TracingEndpoint)
		assert.False(t, cfg.SeedDemoData)
		assert.True(t, cfg.ServerSideRoles)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"log_level": "debug"})
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", partial}))

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, ":5001", cfg.EndpointAddrHTTP)
		assert.Equal(t, 3, cfg.LockoutThreshold)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{EndpointAddrHTTP: "defaults:1234"}
		require.NoError(t, parseJson(cfg, nil))
		assert.Equal(t, &Config{EndpointAddrHTTP: "defaults:1234"}, cfg)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{nope"), 0o600))
		require.Error(t, parseJson(&Config{}, []string{"-c", bad}))
	})
}
