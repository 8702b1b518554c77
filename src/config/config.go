package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	JWTSecret          string
	DatabasePath       string
	LogLevel           string
	FrontendBaseURL    string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxImportBodyBytes int64
	RateLimitPerSecond float64
	RateLimitBurst     int
}

var Cfg *AppConfig

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found, relying on environment variables")
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "your_very_secret_key_for_jwt"),
		DatabasePath:       getEnv("DATABASE_PATH", "./coinfolio.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		FrontendBaseURL:    getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY_MINUTES", 15*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY_HOURS", 7*24*time.Hour),
		MaxImportBodyBytes: getEnvAsInt64("MAX_IMPORT_BODY_BYTES", 10<<20),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}

	if Cfg.JWTSecret == "your_very_secret_key_for_jwt" {
		log.Println("WARNING: Using default JWT secret. Set JWT_SECRET environment variable for production.")
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration reads an integer env var and interprets it with the unit
// encoded in the key suffix (MINUTES or HOURS).
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: invalid value for %s, using default", key)
		return defaultValue
	}
	switch {
	case len(key) > 5 && key[len(key)-5:] == "HOURS":
		return time.Duration(value) * time.Hour
	default:
		return time.Duration(value) * time.Minute
	}
}
