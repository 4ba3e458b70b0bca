// Package config loads runtime configuration from environment
// variables. Required values stop the process at boot; optional
// subsystems (Redis, the booking queue, the seeded admin) switch off
// when their variables are absent.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds the settings every process needs. The Redis-backed rate
// limiter and response cache load their own blocks.
type Config struct {
	Env            string
	Port           string
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	// AMQPURL enables booking event publishing and the audit consumer
	// when set.
	AMQPURL string

	// AdminEmail and AdminPassword seed the first admin account at
	// startup when both are set. Registration only ever creates
	// customers, so without these the instance has no admin.
	AdminEmail    string
	AdminPassword string
}

// Load reads the environment and exits on missing required values.
// Misconfiguration should fail at boot, not on the first request.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		AMQPURL:        envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
	}
}

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
