package config

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient dials Redis using the REDIS_* variables and verifies
// the connection with a short ping. It returns nil when Redis is
// unreachable so rate limiting and response caching degrade to
// pass-through instead of blocking startup.
//
//	REDIS_ADDR     host:port (default localhost:6379)
//	REDIS_HOST     with REDIS_PORT, overrides REDIS_ADDR
//	REDIS_PASSWORD optional
//	REDIS_DB       database number, default 0
//	REDIS_TLS      enable TLS when truthy
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	var tlsConf *tls.Config
	if envBool("REDIS_TLS", false) {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        envInt("REDIS_DB", 0),
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
