// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"time"
)

// RateLimitRule is a fixed-window budget: at most Max attempts per Window.
type RateLimitRule struct {
	Max    int
	Window time.Duration
}

// Config holds runtime settings for the NoteKeeper server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the JSON API.
//   - EndpointAddrGRPC: bind address for the gRPC health service; empty disables it.
//   - DatabaseDriver / DatabaseDSN: "sqlite" (modernc) or "postgres" (pgx) and its DSN.
//   - BcryptCost: work factor for password hashes.
//   - LockoutThreshold / LockoutDuration: consecutive failures before an account
//     is locked, and for how long.
//   - CSRFTokenTTL: lifetime of an anti-forgery token.
//   - SweepInterval: how often expired tokens and rate-limit windows are purged.
//   - LoginRateLimit / SignupRateLimit / PasswordChangeRateLimit: per-IP budgets.
//   - TokenStore: "memory" or "redis" backing for anti-forgery tokens.
//   - RedisAddr / RedisPassword: used when TokenStore is "redis".
//   - CORSAllowedOrigins: origins allowed by the CORS handler.
//   - LogLevel: debug, info, warn or error.
//   - TracingEndpoint: OTLP collector host:port; empty disables tracing.
//   - SeedDemoData: create the demo accounts and welcome note on start.
//   - ServerSideRoles: derive the caller's role from the stored user instead
//     of the role sent with the request.
type Config struct {
	EndpointAddrHTTP        string
	EndpointAddrGRPC        string
	DatabaseDriver          string
	DatabaseDSN             string
	BcryptCost              int
	LockoutThreshold        int
	LockoutDuration         time.Duration
	CSRFTokenTTL            time.Duration
	SweepInterval           time.Duration
	LoginRateLimit          RateLimitRule
	SignupRateLimit         RateLimitRule
	PasswordChangeRateLimit RateLimitRule
	TokenStore              string
	RedisAddr               string
	RedisPassword           string
	CORSAllowedOrigins      []string
	LogLevel                string
	TracingEndpoint         string
	SeedDemoData            bool
	ServerSideRoles         bool
}

// LoadDefaults populates Config with development defaults matching the
// behaviour described for the service (3 failures / 5 minutes lockout,
// 1 hour tokens, 10 minute sweeps).
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":5001"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:notes.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	c.BcryptCost = 10
	c.LockoutThreshold = 3
	c.LockoutDuration = 5 * time.Minute
	c.CSRFTokenTTL = time.Hour
	c.SweepInterval = 10 * time.Minute
	c.LoginRateLimit = RateLimitRule{Max: 5, Window: 15 * time.Minute}
	c.SignupRateLimit = RateLimitRule{Max: 3, Window: 60 * time.Minute}
	c.PasswordChangeRateLimit = RateLimitRule{Max: 5, Window: 60 * time.Minute}
	c.TokenStore = "memory"
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPassword = ""
	c.CORSAllowedOrigins = []string{"*"}
	c.LogLevel = "info"
	c.TracingEndpoint = ""
	c.SeedDemoData = true
	c.ServerSideRoles = false
}

// Load builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
// args are the program arguments without the binary name.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
