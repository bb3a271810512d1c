// Package config loads server settings from the environment. A .env file is
// read by the entrypoint before Load runs, so both real environments and
// local development files feed the same variables.
package config

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	Addr            string
	DatabaseDriver  string // "sqlite" or "postgres"
	DatabaseDSN     string
	Secret          string
	Env             string
	RateRPS         float64
	RateBurst       int
	ShutdownTimeout time.Duration
}

func Load() Config {
	cfg := Config{
		Addr:            ":" + getEnv("PORT", "8080"),
		DatabaseDriver:  getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "cardkeeper-server.db"),
		Secret:          getEnv("SECRET", ""),
		Env:             getEnv("ENV", "development"),
		RateRPS:         10,
		RateBurst:       20,
		ShutdownTimeout: 10 * time.Second,
	}

	if cfg.Env == "production" && cfg.Secret == "" {
		slog.Error("SECRET must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
