// Package config provides configuration management for the alert engine.
// It loads configuration from environment variables and .env files, and
// alert definitions from a JSON file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Telegram TelegramConfig
	Provider ProviderConfig
	Delivery DeliveryConfig
	Logging  LoggingConfig
	Alerts   AlertsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration for the transaction archive
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// TelegramConfig holds the delivery channel configuration
type TelegramConfig struct {
	BotToken        string
	Recipients      []int64 // normal recipient set
	DevRecipients   []int64 // replaces Recipients when DevMode is on
	DeveloperChatID int64   // operator diagnostics target
}

// ProviderConfig holds upstream data provider credentials and endpoints
type ProviderConfig struct {
	BaseURL         string // login endpoint host
	ProxyURL        string // proxied API host for authed calls
	Email           string
	HashedPassword  string
	DeviceID        string
	EtherscanAPIKey string
	PortfolioAESKey string
	EthRPCURL       string // JSON-RPC endpoint for receipt/block lookups
}

// DeliveryConfig holds dispatcher behavior configuration
type DeliveryConfig struct {
	DevMode      bool
	SendMessages bool
	MaxRetries   int
	BackoffUnit  time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// AlertsConfig holds alert definition loading configuration
type AlertsConfig struct {
	DefinitionsPath string // JSON file; empty means built-in defaults
	DedupTTL        time.Duration
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	recipients, err := getEnvAsInt64List("TELEGRAM_RECIPIENTS")
	if err != nil {
		return nil, err
	}
	devRecipients, err := getEnvAsInt64List("TELEGRAM_DEV_RECIPIENTS")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "stealth_alerts"),
				User:           getEnv("POSTGRES_USER", "alerts"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "stealth_alerts"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Telegram: TelegramConfig{
			BotToken:        getEnv("BOT_TOKEN", ""),
			Recipients:      recipients,
			DevRecipients:   devRecipients,
			DeveloperChatID: int64(getEnvAsInt("TELEGRAM_DEVELOPER_CHAT_ID", 0)),
		},
		Provider: ProviderConfig{
			BaseURL:         getEnv("CANDLESTICK_BASE_URL", "https://www.candlestick.io"),
			ProxyURL:        getEnv("CANDLESTICK_PROXY", "https://www.candlestick.io"),
			Email:           getEnv("CANDLESTICK_EMAIL", ""),
			HashedPassword:  getEnv("CANDLESTICK_HASHED_PASSWORD", ""),
			DeviceID:        getEnv("CANDLESTICK_DEVICE_ID", ""),
			EtherscanAPIKey: getEnv("ETHERSCAN_API_KEY", ""),
			PortfolioAESKey: getEnv("PORTFOLIO_AES_KEY", ""),
			EthRPCURL:       getEnv("ETH_RPC_URL", ""),
		},
		Delivery: DeliveryConfig{
			DevMode:      getEnvAsBool("DEV_MODE", false),
			SendMessages: getEnvAsBool("SEND_MESSAGES", true),
			MaxRetries:   getEnvAsInt("DELIVERY_MAX_RETRIES", 3),
			BackoffUnit:  getEnvAsDuration("DELIVERY_BACKOFF_UNIT", time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Alerts: AlertsConfig{
			DefinitionsPath: getEnv("ALERTS_CONFIG_PATH", ""),
			DedupTTL:        getEnvAsDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64List parses a comma-separated list of int64 values
func getEnvAsInt64List(key string) ([]int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return nil, nil
	}

	var values []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q in %s: %w", part, key, err)
		}
		values = append(values, v)
	}
	return values, nil
}
