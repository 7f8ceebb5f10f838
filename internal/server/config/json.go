package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/notekeeper/internal/flagx"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

// JsonRateLimit is the JSON form of RateLimitRule.
type JsonRateLimit struct {
	Max    int            `json:"max"`
	Window timex.Duration `json:"window"`
}

// JsonConfig is the on-disk shape of the server configuration. Pointer
// fields distinguish "absent" from "zero" so a partial file only overrides
// what it names.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC        *string         `json:"endpoint_addr_grpc"`
	DatabaseDriver          *string         `json:"database_driver"`
	DatabaseDSN             *string         `json:"database_dsn"`
	BcryptCost              *int            `json:"bcrypt_cost"`
	LockoutThreshold        *int            `json:"lockout_threshold"`
	LockoutDuration         *timex.Duration `json:"lockout_duration"`
	CSRFTokenTTL            *timex.Duration `json:"csrf_token_ttl"`
	SweepInterval           *timex.Duration `json:"sweep_interval"`
	LoginRateLimit          *JsonRateLimit  `json:"login_rate_limit"`
	SignupRateLimit         *JsonRateLimit  `json:"signup_rate_limit"`
	PasswordChangeRateLimit *JsonRateLimit  `json:"password_change_rate_limit"`
	TokenStore              *string         `json:"token_store"`
	RedisAddr               *string         `json:"redis_addr"`
	RedisPassword           *string         `json:"redis_password"`
	CORSAllowedOrigins      []string        `json:"cors_allowed_origins"`
	LogLevel                *string         `json:"log_level"`
	TracingEndpoint         *string         `json:"tracing_endpoint"`
	SeedDemoData            *bool           `json:"seed_demo_data"`
	ServerSideRoles         *bool           `json:"server_side_roles"`
}

// parseJson overlays config with the JSON file named by -c / -config.
// Without that flag nothing happens.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TokenStore, c.TokenStore)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.TracingEndpoint, c.TracingEndpoint)

	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.LockoutThreshold != nil {
		config.LockoutThreshold = *c.LockoutThreshold
	}
	if c.LockoutDuration != nil {
		config.LockoutDuration = c.LockoutDuration.Duration
	}
	if c.CSRFTokenTTL != nil {
		config.CSRFTokenTTL = c.CSRFTokenTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	setRule(&config.LoginRateLimit, c.LoginRateLimit)
	setRule(&config.SignupRateLimit, c.SignupRateLimit)
	setRule(&config.PasswordChangeRateLimit, c.PasswordChangeRateLimit)

	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.SeedDemoData != nil {
		config.SeedDemoData = *c.SeedDemoData
	}
	if c.ServerSideRoles != nil {
		config.ServerSideRoles = *c.ServerSideRoles
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setRule(dst *RateLimitRule, v *JsonRateLimit) {
	if v == nil {
		return
	}
	dst.Max = v.Max
	dst.Window = v.Window.Duration
}
