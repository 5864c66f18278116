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

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Uploads  UploadConfig
	OCR      OCRConfig
	Raster   RasterConfig
	Pipeline PipelineConfig
	Parser   ParserConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type UploadConfig struct {
	Dir   string
	MaxMB int
}

type OCRConfig struct {
	Language          string
	MinWordConfidence float64
}

// RasterConfig bounds how large rasterized pages may grow. DPI is chosen
// per page so the rendered image stays under MaxPixels.
type RasterConfig struct {
	MaxPixels  int64
	MaxDPI     int
	DefaultDPI int
}

type PipelineConfig struct {
	Workers            int
	MinTableConfidence float64
}

type ParserConfig struct {
	DefaultCurrency string
}

type WorkerConfig struct {
	PollInterval     time.Duration
	StatementTimeout time.Duration
	RequeueAfter     time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. A .env file in
// the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("PORT", 8000),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "statements"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Uploads: UploadConfig{
			Dir:   getEnv("UPLOAD_DIR", "data/uploads/statements"),
			MaxMB: getEnvAsInt("MAX_UPLOAD_MB", 10),
		},
		OCR: OCRConfig{
			Language:          getEnv("OCR_LANGUAGE", "eng"),
			MinWordConfidence: getEnvAsFloat("OCR_MIN_WORD_CONFIDENCE", 60),
		},
		Raster: RasterConfig{
			MaxPixels:  getEnvAsInt64("RASTER_MAX_PIXELS", 40_000_000),
			MaxDPI:     getEnvAsInt("RASTER_MAX_DPI", 300),
			DefaultDPI: getEnvAsInt("RASTER_DEFAULT_DPI", 300),
		},
		Pipeline: PipelineConfig{
			Workers:            getEnvAsInt("PIPELINE_WORKERS", 2),
			MinTableConfidence: getEnvAsFloat("MIN_TABLE_CONFIDENCE", 0.5),
		},
		Parser: ParserConfig{
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "GBP"),
		},
		Worker: WorkerConfig{
			PollInterval:     time.Duration(getEnvAsInt("WORKER_POLL_SECONDS", 2)) * time.Second,
			StatementTimeout: time.Duration(getEnvAsInt("STATEMENT_TIMEOUT_MINUTES", 5)) * time.Minute,
			RequeueAfter:     time.Duration(getEnvAsInt("REQUEUE_AFTER_MINUTES", 15)) * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if cfg.Uploads.MaxMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.Uploads.MaxMB)
	}
	if cfg.Pipeline.Workers < 1 {
		cfg.Pipeline.Workers = 1
	}

	return cfg, nil
}

// DSN returns the database connection string. DATABASE_URL wins when set.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewLogger builds the process logger from the logging settings.
func (c *LoggingConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
