package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// Timezone is the IANA zone used to resolve a pipeline run's reference date.
	Timezone      string
	SnowflakeNode int64

	LogLevel  string
	LogFormat string

	DBType        string
	DBHost        string
	DBPort        string
	DBName        string
	DBUser        string
	DBPassword    string
	DBSSLMode     string
	DBPath        string
	DBMaxIdleConn int
	DBMaxOpenConn int
	AutoMigrate   bool

	RateLimit RateLimitConfig
}

// RateLimitConfig throttles batch uploads per tenant through Redis.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadRate        float64
	UploadBurst       int
	UploadLockSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "renewly"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		Timezone:      getenv("RENEWLY_TIMEZONE", DefaultTimezone),
		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),
		LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
		DBType:        strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:        getenv("DATABASE_HOST", "localhost"),
		DBPort:        getenv("DATABASE_PORT", "5432"),
		DBName:        getenv("DATABASE_NAME", "renewly"),
		DBUser:        getenv("DATABASE_USER", "postgres"),
		DBPassword:    getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:     getenv("DATABASE_SSLMODE", "disable"),
		DBPath:        getenv("DATABASE_PATH", "renewly.db"),
		DBMaxIdleConn: getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn: getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		AutoMigrate:   getenvBool("DATABASE_AUTO_MIGRATE", true),
		RateLimit: RateLimitConfig{
			Enabled:           getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     getenv("REDIS_PASSWORD", ""),
			RedisDB:           getenvInt("REDIS_DB", 0),
			UploadRate:        getenvFloat("RATE_LIMIT_UPLOAD_RATE", 0.2),
			UploadBurst:       getenvInt("RATE_LIMIT_UPLOAD_BURST", 5),
			UploadLockSeconds: getenvInt("RATE_LIMIT_UPLOAD_LOCK_SECONDS", 60),
		},
	}
}

// DefaultTimezone matches the civil calendar members' end dates are written in.
const DefaultTimezone = "Asia/Kolkata"

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
