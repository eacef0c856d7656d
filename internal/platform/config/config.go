package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment only so main stays lean and deployments stay explicit.
type Server struct {
	Addr             string
	DatabaseURL      string
	RedisAddr        string
	JWTSigningKey    string
	AdminTokenHash   string
	ReconcileOnStart bool
	LockTimeout      time.Duration
	ShutdownTimeout  time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CARETRACK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	lockTimeout := 5 * time.Second
	if raw := os.Getenv("LEDGER_LOCK_TIMEOUT_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			lockTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	return Server{
		Addr:             addr,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		JWTSigningKey:    jwtSigningKey,
		AdminTokenHash:   os.Getenv("ADMIN_TOKEN_HASH"),
		ReconcileOnStart: os.Getenv("RECONCILE_ON_START") != "false",
		LockTimeout:      lockTimeout,
		ShutdownTimeout:  10 * time.Second,
	}
}
