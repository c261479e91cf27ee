package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	GinMode   string
	ModelPath string
	LogLevel  string
	LogFormat string
	Database  DatabaseConfig
}

type DatabaseConfig struct {
	Enabled        bool
	URL            string
	MaxConns       int32
	ConnectRetries int
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		ModelPath: getEnv("MODEL_PATH", "svc_model.json"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Database: DatabaseConfig{
			Enabled:        strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
			URL:            os.Getenv("DATABASE_URL"),
			MaxConns:       int32(getEnvInt("DB_MAX_CONNS", 4)),
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH must not be empty")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
	}
	if c.Database.ConnectRetries < 0 {
		return fmt.Errorf("DB_CONNECT_RETRIES must not be negative, got %d", c.Database.ConnectRetries)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
