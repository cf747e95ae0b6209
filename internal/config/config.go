package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort      string
	DBDriver        string
	DBDSN           string
	ResetDB         bool
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CorsOrigins     []string
	AuthRateLimit   int
	SwaggerHost     string
	SeedAdminUser   string
	SeedAdminPass   string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:           getEnv("DB_DSN", "user:password@tcp(localhost:3306)/mindbridge?charset=utf8mb4&parseTime=True&loc=Local"),
		ResetDB:         os.Getenv("RESET_DB") == "true",
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RedisPass:       os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		CorsOrigins:     parseCSV(os.Getenv("CORS_ORIGINS")),
		AuthRateLimit:   getEnvInt("AUTH_RATE_LIMIT", 10),
		SwaggerHost:     os.Getenv("SWAGGER_HOST"),
		SeedAdminUser:   getEnv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminPass:   os.Getenv("SEED_ADMIN_PASSWORD"),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			items = append(items, value)
		}
	}
	return items
}
