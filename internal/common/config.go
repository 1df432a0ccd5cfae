package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RefData  RefDataConfig
	Pipeline PipelineConfig
	OCR      OCRConfig
	LLM      LLMConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr      string
	UploadDir string
}

// DatabaseConfig holds bill store configuration. DSN selects the driver:
// a postgres:// URL uses pgx, anything else is treated as a SQLite path.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// RefDataConfig holds reference dataset configuration
type RefDataConfig struct {
	Path     string // SQLite file produced by refload
	CacheTTL time.Duration
}

// PipelineConfig holds job orchestration configuration
type PipelineConfig struct {
	Workers      int
	QueueSize    int
	StageTimeout time.Duration
}

// OCRConfig holds OCR adapter configuration
type OCRConfig struct {
	Pdftotext   string
	Pdftoppm    string
	Tesseract   string
	Ghostscript string
	Language    string
	DPI         int
	MaxPages    int
}

// LLMConfig holds extraction model configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			UploadDir: getEnv("UPLOAD_DIR", "./data/uploads"),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "./data/processed/bills.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		RefData: RefDataConfig{
			Path:     getEnv("REF_DB_PATH", "./data/processed/reference.db"),
			CacheTTL: getEnvAsDuration("REF_CACHE_TTL", 5*time.Minute),
		},
		Pipeline: PipelineConfig{
			Workers:      getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:    getEnvAsInt("PIPELINE_QUEUE_SIZE", 64),
			StageTimeout: getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", 3*time.Minute),
		},
		OCR: OCRConfig{
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Ghostscript: getEnv("GS_BIN", "gs"),
			Language:    getEnv("OCR_LANG", "eng"),
			DPI:         getEnvAsInt("OCR_DPI", 200),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 20),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			Model:       getEnv("LLM_MODEL", "phi3:3.8b"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 2*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.RefData.Path == "" {
		return NewAppError("CONFIG_ERROR", "REF_DB_PATH is required", ErrInvalidInput)
	}
	if c.Pipeline.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
