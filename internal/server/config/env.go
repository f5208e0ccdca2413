package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from the process environment. A .env
// file in the working directory is loaded first if present; real environment
// variables win over it.
//
// Recognized variables:
//
//	ADDRESS         HTTP bind address
//	DATABASE_DSN    PostgreSQL DSN
//	SECRET_KEY      staff token HMAC secret
//	CORS_ORIGINS    comma-separated list of allowed origins
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("ADDRESS"); v != "" {
		cfg.EndpointAddrHTTP = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
}
