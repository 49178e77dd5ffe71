// Package config loads runtime configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration. Each field maps to one
// environment variable; required ones abort startup when missing.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional, empty allowed
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string
	AccessTTLMin   int // access token TTL in minutes
	RefreshTTLDays int // refresh token TTL in days
	BcryptCost     int

	// ReminderCron is the cron spec for the daily reminder sweep, in the
	// server's local time. Defaults to 08:00 every day.
	ReminderCron string

	// RateLimitPerMin caps authenticated requests per client per minute.
	// Zero disables the limiter.
	RateLimitPerMin int
}

// Load reads the configuration. Required variables are enforced by must()
// and cause a fatal log on absence.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		AccessTTLMin:    mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:  mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:      mustInt("BCRYPT_COST"),
		ReminderCron:    optional("REMINDER_CRON", "0 8 * * *"),
		RateLimitPerMin: optionalInt("RATE_LIMIT_PER_MIN", 120),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but parses the value as an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("env var %s must be an integer, got %q", key, s)
	}
	return n
}

func optional(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func optionalInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("env var %s must be an integer, got %q", key, s)
	}
	return n
}
