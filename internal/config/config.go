package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL         string
	RedisURL            string
	JWTSecret           string
	TokenTTL            time.Duration
	ServerAddr          string
	LogLevel            slog.Level
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
	PageSize            int
	MaxPageSize         int
	CompactionThreshold time.Duration
	SnowflakeWorkerID   int64
	MigrateOnStart      bool
	RateLimitPerMinute  int
}

// Load reads the configuration from the environment, after merging an
// optional .env file from the working directory. It panics when required
// variables are missing or malformed.
func Load() *Config {
	_ = godotenv.Load(".env")

	var problems []string
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       envOrDefault("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ServerAddr:     envOrDefault("SERVER_ADDR", ":8080"),
		LogLevel:       parseLogLevel(os.Getenv("LOG_LEVEL")),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    envOrDefault("MINIO_BUCKET", "slack-clone"),
	}

	if cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET")
	}

	cfg.MinIOUseSSL = envBool("MINIO_USE_SSL", false, &problems)
	cfg.TokenTTL = envDuration("TOKEN_TTL", 15*time.Minute, &problems)
	cfg.PageSize = envInt("PAGE_SIZE", 20, &problems)
	cfg.MaxPageSize = envInt("MAX_PAGE_SIZE", 100, &problems)
	cfg.CompactionThreshold = envDuration("COMPACTION_THRESHOLD", 5*time.Minute, &problems)
	cfg.SnowflakeWorkerID = int64(envInt("SNOWFLAKE_WORKER_ID", 1, &problems))
	cfg.MigrateOnStart = envBool("MIGRATE_ON_START", false, &problems)
	cfg.RateLimitPerMinute = envInt("RATE_LIMIT_PER_MINUTE", 120, &problems)

	if cfg.PageSize <= 0 || cfg.MaxPageSize < cfg.PageSize {
		problems = append(problems, "PAGE_SIZE/MAX_PAGE_SIZE")
	}

	if len(problems) > 0 {
		panic(fmt.Sprintf("required environment variables not set or invalid: %s", strings.Join(problems, ", ")))
	}

	return cfg
}

// StorageEnabled reports whether image storage is configured.
func (c *Config) StorageEnabled() bool {
	return c.MinIOEndpoint != ""
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, problems *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, key)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool, problems *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*problems = append(*problems, key)
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration, problems *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*problems = append(*problems, key)
		return fallback
	}
	return d
}
