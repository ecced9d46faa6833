package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds leaderboard server settings.
type ServerConfig struct {
	Addr        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration
	JWTSecret   string
	JWTExpiry   time.Duration
	BcryptCost  int
	LogLevel    string
	LogFormat   string
	// AllowedOrigins controls websocket origin validation. Empty allows all.
	AllowedOrigins []string
}

// LoadServer reads server configuration from a .env file (if present) and
// the environment.
func LoadServer() ServerConfig {
	_ = godotenv.Load() // .env is optional

	return ServerConfig{
		Addr:           getEnv("ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", "sqlite://"+DefaultDBPath()),
		RedisURL:       getEnv("REDIS_URL", ""),
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		JWTSecret:      getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:      time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24*7)) * time.Hour,
		BcryptCost:     getEnvInt("BCRYPT_COST", 10),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
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
