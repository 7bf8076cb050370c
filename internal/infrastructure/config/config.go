// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string

	// Metrics server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PostgreSQL
	PostgresURI string

	// MongoDB (optional raw response archive)
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// TKGM WFS service
	TKGMBaseURL  string
	TKGMUsername string
	TKGMPassword string

	// Layer typenames
	ParcelTypeName        string
	DistrictTypeName      string
	NeighbourhoodTypeName string

	// Coordinate reference systems
	SourceEPSG int
	TargetEPSG int

	// Fetch tunables
	MaxFeatures    int
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration

	// Sync windows
	CutoffDate         string
	DailySyncEpoch     string
	DailyInactiveEpoch string

	// Telegram
	TelegramBotToken  string
	TelegramChatID    string
	TelegramParseMode string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		PostgresURI: getEnv("POSTGRES_DSN", "postgres://localhost:5432/tkgm"),

		MongoURI:      getEnv("MONGODB_DSN", ""),
		MongoDB:       getEnv("MONGO_DB", "tkgm_archive"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		TKGMBaseURL:  getEnv("TKGM_BASE_URL", "https://cbsservis.tkgm.gov.tr/tkgm.ows/wfs"),
		TKGMUsername: getEnv("TKGM_USERNAME", ""),
		TKGMPassword: getEnv("TKGM_PASSWORD", ""),

		ParcelTypeName:        getEnv("TYPENAME_PARCELS", "TKGM:parseller"),
		DistrictTypeName:      getEnv("TYPENAME_DISTRICTS", "TKGM:ilceler"),
		NeighbourhoodTypeName: getEnv("TYPENAME_NEIGHBOURHOODS", "TKGM:mahalleler"),

		SourceEPSG: getEnvAsInt("SOURCE_EPSG", 4326),
		TargetEPSG: getEnvAsInt("TARGET_EPSG", 2320),

		MaxFeatures:    getEnvAsInt("MAX_FEATURES", 1000),
		MaxRetries:     getEnvAsInt("MAX_RETRIES", 10),
		RetryDelay:     time.Duration(getEnvAsInt("RETRY_DELAY", 5)) * time.Second,
		RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 300)) * time.Second,

		CutoffDate:         getEnv("CUTOFF_DATE", "2025-01-01"),
		DailySyncEpoch:     getEnv("DAILY_SYNC_EPOCH", ""),
		DailyInactiveEpoch: getEnv("DAILY_INACTIVE_EPOCH", "2021-01-01"),

		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramParseMode: getEnv("TELEGRAM_PARSE_MODE", ""),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
