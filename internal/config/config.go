package config

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/mediarank/mediarank/internal/utils"
)

// Config carries the process configuration, sourced from the
// environment with an optional .env file for local development.
type Config struct {
	Addr        string
	DBPath      string
	JWTSecret   string
	FrontendURL string
	Environment string
}

func Load() (*Config, error) {
	// Ignore a missing .env; plain environment variables win either way.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Addr:        utils.SafeEnv("MEDIARANK_ADDR", ":8080"),
		DBPath:      utils.SafeEnv("MEDIARANK_DB", "mediarank.db"),
		JWTSecret:   utils.SafeEnv("MEDIARANK_JWT_SECRET", ""),
		FrontendURL: utils.SafeEnv("MEDIARANK_FRONTEND_URL", "http://localhost:5173"),
		Environment: utils.SafeEnv("ENV", "development"),
	}

	if cfg.Environment == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("MEDIARANK_JWT_SECRET is required in production")
	}
	return cfg, nil
}
