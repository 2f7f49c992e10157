/**
 * Configuration for the balance-sheet extraction worker
 *
 * Loads configuration from environment variables (optionally seeded from a
 * .env file by the entry points).
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Column order values accepted by COLUMN_ORDER.
const (
	ColumnOrderCurrentFirst = "current-first"
	ColumnOrderPriorFirst   = "prior-first"
)

// Queue backends accepted by QUEUE_BACKEND.
const (
	QueueBackendAsynq = "asynq"
	QueueBackendRedis = "redis"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL     string
	QueueBackend string
	QueueName    string

	// PostgreSQL configuration
	DatabaseURL string

	// HTTP server
	HTTPPort string

	// Worker configuration
	WorkerConcurrency int
	PageConcurrency   int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds

	// Tesseract configuration
	TessdataPrefix string
	OCRLanguage    string

	// Temporary directory for page image extraction
	TempDir string

	// Extraction tuning
	StatisticsFile     string
	BandHeightDivisor  int
	StrictContinuation bool
	YearMin            int
	YearMax            int
	ColumnOrder        string

	LogLevel    string
	Environment string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueBackend:       strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueBackendAsynq)),
		QueueName:          getEnvOrDefault("QUEUE_NAME", "accounts:extraction"),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		HTTPPort:           getEnvOrDefault("HTTP_PORT", "8080"),
		WorkerConcurrency:  getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		PageConcurrency:    getEnvAsIntOrDefault("PAGE_CONCURRENCY", 4),
		MaxFileSize:        getEnvAsInt64OrDefault("MAX_FILE_SIZE", 104857600), // 100MB
		ProcessingTimeout:  getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		TessdataPrefix:     getEnvOrDefault("TESSDATA_PREFIX", ""),
		OCRLanguage:        getEnvOrDefault("OCR_LANGUAGE", "eng"),
		TempDir:            getEnvOrDefault("TEMP_DIR", os.TempDir()),
		StatisticsFile:     getEnvOrDefault("STATISTICS_FILE", ""),
		BandHeightDivisor:  getEnvAsIntOrDefault("BAND_HEIGHT_DIVISOR", 20),
		StrictContinuation: getEnvAsBoolOrDefault("STRICT_CONTINUATION", false),
		YearMin:            getEnvAsIntOrDefault("YEAR_MIN", 2000),
		YearMax:            getEnvAsIntOrDefault("YEAR_MAX", 2050),
		ColumnOrder:        strings.ToLower(getEnvOrDefault("COLUMN_ORDER", ColumnOrderCurrentFirst)),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		Environment:        getEnvOrDefault("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings every entry point depends on
func (c *Config) Validate() error {
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.PageConcurrency < 1 || c.PageConcurrency > 64 {
		return fmt.Errorf("PAGE_CONCURRENCY must be between 1 and 64, got %d", c.PageConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.BandHeightDivisor < 1 {
		return fmt.Errorf("BAND_HEIGHT_DIVISOR must be positive, got %d", c.BandHeightDivisor)
	}

	if c.YearMin > c.YearMax {
		return fmt.Errorf("YEAR_MIN (%d) must not exceed YEAR_MAX (%d)", c.YearMin, c.YearMax)
	}

	switch c.ColumnOrder {
	case ColumnOrderCurrentFirst, ColumnOrderPriorFirst:
	default:
		return fmt.Errorf("COLUMN_ORDER must be %q or %q, got %q", ColumnOrderCurrentFirst, ColumnOrderPriorFirst, c.ColumnOrder)
	}

	switch c.QueueBackend {
	case QueueBackendAsynq, QueueBackendRedis:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendAsynq, QueueBackendRedis, c.QueueBackend)
	}

	return nil
}

// ValidateWorker additionally requires the backing services of the queue worker
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
