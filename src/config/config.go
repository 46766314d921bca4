package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port           string
	DatabasePath   string
	LogLevel       string
	AllowedOrigins []string

	RateLimitInterval time.Duration
	RateLimitBurst    int

	MaxUploadSizeBytes int64
	DefaultPageSize    int

	ReportCacheTTL     time.Duration
	ReportCacheCleanup time.Duration

	// Cron spec for the background incremental match, e.g. "@every 1h". Empty disables it.
	MatchSchedule     string
	AutoMatchOnImport bool
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	Cfg = &AppConfig{
		Port:           getEnv("PORT", "8080"),
		DatabasePath:   getEnv("DATABASE_PATH", "./lotfolio.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),

		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),
		DefaultPageSize:    getEnvAsInt("DEFAULT_PAGE_SIZE", 50),

		ReportCacheTTL:     getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
		ReportCacheCleanup: getEnvAsDuration("REPORT_CACHE_CLEANUP", 30*time.Minute),

		MatchSchedule:     getEnv("MATCH_SCHEDULE", ""),
		AutoMatchOnImport: getEnvAsBool("AUTO_MATCH_ON_IMPORT", true),
	}

	if Cfg.DefaultPageSize <= 0 {
		log.Printf("WARNING: DEFAULT_PAGE_SIZE must be positive, got %d. Using 50.", Cfg.DefaultPageSize)
		Cfg.DefaultPageSize = 50
	}
	if Cfg.RateLimitBurst <= 0 {
		log.Printf("WARNING: RATE_LIMIT_BURST must be positive, got %d. Using 30.", Cfg.RateLimitBurst)
		Cfg.RateLimitBurst = 30
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, MatchSchedule=%q",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.MatchSchedule)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
