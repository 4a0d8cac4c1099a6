package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	JWTSigningKey   string
	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("APP_REGISTRY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dbURL := os.Getenv("APP_REGISTRY_DATABASE_URL")

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	shutdown := 10 * time.Second
	if raw := os.Getenv("APP_REGISTRY_SHUTDOWN_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			shutdown = parsed
		}
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     dbURL,
		JWTSigningKey:   jwtSigningKey,
		ShutdownTimeout: shutdown,
	}
}
