package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. The types reflect how the values are used
// in the application: strings for identifiers and secrets, durations
// for the engine's time-based settings.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to sign cart session tokens

	// Allocation engine settings.
	CartTTL         time.Duration // how long a cart hold stays valid
	PaymentTTL      time.Duration // payment deadline for pending orders
	LockWait        time.Duration // bounded wait for the event lock
	LockMode        string        // "db", "memory" or "off"
	ReclaimInterval time.Duration // how often the reclaimer sweeps
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
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

		CartTTL:         time.Duration(envInt("CART_TTL_MIN", 30)) * time.Minute,
		PaymentTTL:      time.Duration(envInt("PAYMENT_TTL_HOURS", 24)) * time.Hour,
		LockWait:        time.Duration(envInt("LOCK_WAIT_SEC", 5)) * time.Second,
		LockMode:        envStr("LOCK_MODE", "db"),
		ReclaimInterval: time.Duration(envInt("RECLAIM_INTERVAL_SEC", 60)) * time.Second,
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
