package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// StoreDriver selects the record store backend: "sqlite" (default),
	// "postgres", or "memory". The server also falls back to "memory"
	// on its own when the durable store cannot be opened.
	StoreDriver string
	StoreDSN    string
	StoreName   string

	// CatalogPath points at the exam catalog JSON file.
	CatalogPath string

	JWTSecret string
	JWTExpiry time.Duration

	// TickInterval is the countdown resolution. One second unless
	// overridden (tests and demos may speed it up).
	TickInterval time.Duration

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		StoreDriver:    getEnv("STORE_DRIVER", "sqlite"),
		StoreDSN:       getEnv("STORE_DSN", "file:campushub.db?_pragma=busy_timeout(5000)"),
		StoreName:      getEnv("STORE_NAME", "campushub"),
		CatalogPath:    getEnv("CATALOG_PATH", "./exams.json"),
		JWTSecret:      getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:      time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		TickInterval:   time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
