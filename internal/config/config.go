package config // package config loads application configuration from environment variables

import (
	"log" // log reports configuration errors and halts execution
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Database and gateway coordinates are
// required; the reservation policy knobs fall back to sensible defaults
// so a bare .env still boots a working engine.
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	DBMaxConns int    // connection pool cap, bounds concurrent claim transactions

	GatewayURL     string        // payment gateway base URL
	GatewayKey     string        // payment gateway API key (optional in dev)
	GatewayTimeout time.Duration // per-call gateway timeout

	MaxSlotsPerBooking int           // cap on slots per reservation request
	ReserveTTL         time.Duration // how long a reservation may await payment
	ClaimTimeout       time.Duration // bound on waiting behind an in-flight claim
	SweepInterval      time.Duration // expiry sweeper period
	AvailabilityTTL    time.Duration // redis lifetime of cached availability
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:        must("APP_ENV"),
		Port:       must("APP_PORT"),
		DBUser:     must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"), // empty allowed
		DBHost:     must("DB_HOST"),
		DBPort:     must("DB_PORT"),
		DBName:     must("DB_NAME"),
		DBMaxConns: envInt("DB_MAX_OPEN_CONNS", 25),

		GatewayURL:     must("PAYMENT_GATEWAY_URL"),
		GatewayKey:     os.Getenv("PAYMENT_GATEWAY_API_KEY"),
		GatewayTimeout: envDur("PAYMENT_GATEWAY_TIMEOUT", 5*time.Second),

		MaxSlotsPerBooking: envInt("MAX_SLOTS_PER_BOOKING", 10),
		ReserveTTL:         time.Duration(envInt("RESERVE_TTL_MIN", 15)) * time.Minute,
		// Kept in the low hundreds of milliseconds: a claim stuck behind
		// a conflicting transaction longer than this has lost the race.
		ClaimTimeout:  time.Duration(envInt("CLAIM_TIMEOUT_MS", 200)) * time.Millisecond,
		SweepInterval: envDur("SWEEP_INTERVAL", time.Minute),
		AvailabilityTTL:    envDur("AVAILABILITY_CACHE_TTL", 30*time.Second),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
