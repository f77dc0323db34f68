package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Required variables halt startup when
// missing; tunables carry defaults.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify access tokens

	HoldTTL            time.Duration // how long a pending reservation keeps its seats
	MaxSeatsPerBooking int           // per-booking seat cap

	ProviderURL      string        // payment provider base URL
	ProviderSecret   string        // shared secret for callback signatures
	ProviderAttempts int           // max attempts per provider call
	ReturnURL        string        // where the provider sends the customer back
	ReapInterval     time.Duration // how often expired holds are swept
}

// Load reads configuration from environment variables. Required
// variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		HoldTTL:            time.Duration(intDefault("HOLD_TTL_MIN", 10)) * time.Minute,
		MaxSeatsPerBooking: intDefault("MAX_SEATS_PER_BOOKING", 6),

		ProviderURL:      must("PAYMENT_PROVIDER_URL"),
		ProviderSecret:   must("PAYMENT_PROVIDER_SECRET"),
		ProviderAttempts: intDefault("PAYMENT_MAX_ATTEMPTS", 3),
		ReturnURL:        getenv("PAYMENT_RETURN_URL", ""),
		ReapInterval:     time.Duration(intDefault("REAP_INTERVAL_SEC", 30)) * time.Second,
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv reads a string environment variable, falling back to def when
// unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// intDefault reads an integer environment variable, falling back to
// def when unset or malformed.
func intDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
