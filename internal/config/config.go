// Package config loads application configuration from environment variables
// with defaults and validation.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds all configuration values for the gatekeeper service.
type Config struct {
	// Server
	Host string // HOST
	Port string // PORT

	// Identity
	AdminAddresses []string // ADMIN_ADDRESSES, comma-separated wallet addresses

	// Stores
	DatabasePath string // DATABASE_PATH, sqlite file backing gate policies
	RedisURL     string // REDIS_URL; empty selects in-memory nonce/session stores

	// Blockchain
	RPCURL string // BASE_RPC_URL

	// Lifetimes
	NonceTTL      time.Duration // NONCE_TTL
	SessionTTL    time.Duration // SESSION_TTL
	SweepInterval time.Duration // SWEEP_INTERVAL

	// Gate evaluation
	GateRPCTimeout time.Duration // GATE_RPC_TIMEOUT, bounds one whole evaluation
	GateConcurrent bool          // GATE_CONCURRENT, fan-out vs sequential balance fetches

	// Web
	CORSAllowedOrigins []string // CORS_ALLOWED_ORIGINS

	// Logging
	LogLevel  string // LOG_LEVEL: debug|info|warn|error
	LogPretty bool   // LOG_PRETTY, console output in dev
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults and
// validates the result.
func Load() (Config, error) {
	cfg := Config{
		Host: getenv("HOST", "0.0.0.0"),
		Port: getenv("PORT", "8080"),

		AdminAddresses: splitCSV(getenv("ADMIN_ADDRESSES", "")),

		DatabasePath: getenv("DATABASE_PATH", "gatekeeper.db"),
		RedisURL:     getenv("REDIS_URL", ""),

		RPCURL: getenv("BASE_RPC_URL", "https://mainnet.base.org"),

		NonceTTL:      getdur("NONCE_TTL", 5*time.Minute),
		SessionTTL:    getdur("SESSION_TTL", 24*time.Hour),
		SweepInterval: getdur("SWEEP_INTERVAL", 10*time.Minute),

		GateRPCTimeout: getdur("GATE_RPC_TIMEOUT", 10*time.Second),
		GateConcurrent: getbool("GATE_CONCURRENT", true),

		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return cfg, errors.New("DATABASE_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return cfg, errors.New("BASE_RPC_URL must not be empty")
	}
	if cfg.NonceTTL <= 0 || cfg.SessionTTL <= 0 || cfg.SweepInterval <= 0 {
		return cfg, errors.New("NONCE_TTL, SESSION_TTL and SWEEP_INTERVAL must be positive durations")
	}
	if cfg.GateRPCTimeout <= 0 {
		return cfg, errors.New("GATE_RPC_TIMEOUT must be a positive duration")
	}

	return cfg, nil
}

// Addr returns the host:port bind address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
