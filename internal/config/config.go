// Package config validates and exposes the whiteboard service's
// environment-derived configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration.
type Config struct {
	// Required variables
	Port string

	// JWTSecret, when set, is checked for a minimum length and logged in
	// redacted form; no handler validates tokens with it. The
	// administrative HTTP surface is gated by the auth validator wired in
	// main, and the websocket ingress path never validates userId (see
	// SPEC_FULL.md §5 — authentication is out of scope for the room
	// state machine).
	JWTSecret string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	AllowedOrigins string

	// Room state machine tuning (spec.md §6.3)
	ClearCooldown     time.Duration
	MaxEventsPerRoom  int
	MaxEventSizeBytes int
	MaxPointsPerEvent int

	HeartbeatEnabled  bool
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// Rate limits (Defaults: M = Minute, H = Hour)
	RateLimitAPIGlobal string
	RateLimitAPIRooms  string
	RateLimitWSIP      string
	RateLimitWSUser    string
}

// ValidateEnv validates all required environment variables and returns a
// Config object. Returns an error if any required variable is missing or
// invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least 32 characters (got %d)", len(cfg.JWTSecret)))
	}

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true). Disabled by
	// default — horizontal scaling is a Non-goal of the room state machine
	// (spec.md §1); when enabled the bus only republishes membership
	// presence hints, never the authoritative event log.
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.ClearCooldown = durationMSOrDefault("CLEAR_COOLDOWN_MS", 1000*time.Millisecond)
	cfg.MaxEventsPerRoom = intOrDefault("MAX_EVENTS_PER_ROOM", 10_000)
	cfg.MaxEventSizeBytes = intOrDefault("MAX_EVENT_SIZE_BYTES", 100*1024)
	cfg.MaxPointsPerEvent = intOrDefault("MAX_POINTS_PER_EVENT", 1000)

	cfg.HeartbeatEnabled = os.Getenv("HEARTBEAT_ENABLED") == "true"
	cfg.HeartbeatInterval = durationMSOrDefault("HEARTBEAT_INTERVAL_MS", 30*time.Second)
	cfg.HeartbeatTimeout = durationMSOrDefault("HEARTBEAT_TIMEOUT_MS", 10*time.Second)

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitWSIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWSUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"jwt_secret", redactSecret(cfg.JWTSecret),
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"clear_cooldown", cfg.ClearCooldown,
		"max_events_per_room", cfg.MaxEventsPerRoom,
		"heartbeat_enabled", cfg.HeartbeatEnabled,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func intOrDefault(key string, def int) int {
	if v, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func durationMSOrDefault(key string, def time.Duration) time.Duration {
	if v, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

// redactSecret redacts a secret by showing only the first 8 characters.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
