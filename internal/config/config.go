// Package config provides configuration management for the service desk.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and remains immutable
// during runtime for thread-safety.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// embeddedEnv contains the .env file embedded at build time.
//
// The embedded file only carries template values so the binary starts with a
// local JSON slot and every integration disabled.
//
//go:embed .env
var embeddedEnv string

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config holds all application configuration.
type Config struct {
	// HTTP API
	HTTPPort string

	// Persistence slot
	StorageBackend  string // file, sqlite or mongo
	StorageKey      string // Key of the single slot holding the collection
	DataDir         string // Directory for the file backend
	SQLitePath      string
	MongoURI        string
	MongoDB         string
	MongoCollection string

	// Gemini text parsing (optional)
	GeminiAPIKey string
	GeminiModel  string
	ParseTimeout time.Duration // 0 means no deadline beyond the caller's context

	// Telegram configuration (optional)
	TelegramBotToken string
	TelegramChatID   string

	// MQTT lifecycle events (optional)
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	// Evidence storage: R2/S3 when all R2_* are set, local directory otherwise
	R2Bucket          string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Endpoint        string
	R2PublicURL       string
	EvidenceDir       string

	// Periodic report push to Telegram, 0 disables it
	ReportInterval time.Duration

	// Event dispatch workers
	EventWorkers int

	// Outbound HTTP client timeout for Telegram, 0 means none
	HTTPTimeout time.Duration

	// Debug mode - skips actual Telegram calls
	DebugMode bool

	LogLevel string
	Currency string
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse embedded .env file and set as fallback environment variables
//  2. Try to load external .env file (overrides embedded values)
//  3. Read environment variables
//  4. Apply hard-coded defaults for any missing optional values
//  5. Validate
func LoadConfig() (*Config, error) {
	fromEmbedded := make(map[string]bool)
	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
				fromEmbedded[k] = true
			}
		}
	}

	// An external .env replaces embedded fallbacks but never real environment values.
	if external, err := godotenv.Read(); err == nil {
		for k, v := range external {
			if fromEmbedded[k] || os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	cfg := &Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		StorageBackend:  strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", BackendFile)),
		StorageKey:      getEnvOrDefault("STORAGE_KEY", "service_center_complaints"),
		DataDir:         getEnvOrDefault("DATA_DIR", "data"),
		SQLitePath:      getEnvOrDefault("SQLITE_DB_PATH", "data/svcdesk.db"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDB:         getEnvOrDefault("MONGO_DB", "svcdesk"),
		MongoCollection: getEnvOrDefault("MONGO_COLLECTION", "slots"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		ParseTimeout: getEnvDuration("PARSE_TIMEOUT", 0),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    getEnvOrDefault("MQTT_TOPIC", "svcdesk/complaints"),
		MQTTClientID: getEnvOrDefault("MQTT_CLIENT_ID", "svcdesk"),

		R2Bucket:          os.Getenv("R2_BUCKET"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Endpoint:        os.Getenv("R2_ENDPOINT"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),
		EvidenceDir:       getEnvOrDefault("EVIDENCE_DIR", "data/evidence"),

		ReportInterval: getEnvDuration("REPORT_INTERVAL", 0),
		EventWorkers:   getEnvInt("EVENT_WORKERS", 2),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 60*time.Second),

		DebugMode: getEnvBool("DEBUG_MODE", false),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		Currency: getEnvOrDefault("CURRENCY", "PKR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and values are sensible.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	if c.StorageKey == "" {
		return fmt.Errorf("STORAGE_KEY cannot be empty")
	}

	switch c.StorageBackend {
	case BackendFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_DB_PATH is required for the sqlite backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable is required for the mongo backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of file, sqlite, mongo, got %q", c.StorageBackend)
	}

	if c.EventWorkers < 1 {
		return fmt.Errorf("EVENT_WORKERS must be at least 1, got %d", c.EventWorkers)
	}
	if c.ReportInterval < 0 {
		return fmt.Errorf("REPORT_INTERVAL cannot be negative, got %v", c.ReportInterval)
	}
	if c.ParseTimeout < 0 {
		return fmt.Errorf("PARSE_TIMEOUT cannot be negative, got %v", c.ParseTimeout)
	}

	return nil
}

// R2Enabled reports whether every R2 credential is present.
func (c *Config) R2Enabled() bool {
	return c.R2Bucket != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2Endpoint != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m". A bare "0" disables the setting.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if value == "0" {
			return 0
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default if not set/invalid
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
