package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Acquire  AcquireConfig
	Scorer   ScorerConfig
	LLM      LLMConfig
	Oracle   OracleConfig
	Cache    CacheConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" or "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// AcquireConfig holds document fetch/decode configuration
type AcquireConfig struct {
	Pdftotext      string
	Timeout        time.Duration
	MaxBytes       int64
	UserAgent      string
	GCSCredentials string
	TempDir        string
	OCR            OCRConfig
}

// OCRConfig controls the scanned-PDF fallback (pdftoppm + tesseract)
type OCRConfig struct {
	Enabled   bool
	Tesseract string
	Pdftoppm  string
	Lang      string
	DPI       int
	MaxPages  int
	// TessdataDir overrides TESSDATA_PREFIX when set
	TessdataDir string
}

// ScorerConfig holds section relevance scoring configuration
type ScorerConfig struct {
	WindowSize     int
	Threshold      int
	Budget         int
	MinLength      int
	FallbackSize   int
	CategoriesFile string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// OracleConfig holds call pacing and retry configuration for the extraction service
type OracleConfig struct {
	RequestsPerSecond float64
	Burst             int
	Attempts          int
	Backoff           time.Duration
	CallTimeout       time.Duration
}

// CacheConfig holds the optional extraction result cache configuration
type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

// PipelineConfig holds worker pool sizing
type PipelineConfig struct {
	DocumentWorkers int
	ProjectWorkers  int
	ProjectTimeout  time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Acquire: AcquireConfig{
			Pdftotext:      getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Timeout:        getEnvAsDuration("ACQUIRE_TIMEOUT", 2*time.Minute),
			MaxBytes:       getEnvAsInt64("ACQUIRE_MAX_BYTES", 200<<20),
			UserAgent:      getEnv("HTTP_USER_AGENT", "mining-enricher/1.0"),
			GCSCredentials: firstEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS"),
			TempDir:        getEnv("ACQUIRE_TEMP_DIR", ""),
			OCR: OCRConfig{
				Enabled:     getEnvAsBool("OCR_ENABLED", false),
				Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
				Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
				Lang:        getEnv("OCR_LANG", "eng"),
				DPI:         getEnvAsInt("OCR_DPI", 300),
				MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 20),
				TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			},
		},
		Scorer: ScorerConfig{
			WindowSize:     getEnvAsInt("SCORER_WINDOW_SIZE", 5000),
			Threshold:      getEnvAsInt("SCORER_THRESHOLD", 2),
			Budget:         getEnvAsInt("SCORER_BUDGET", 30000),
			MinLength:      getEnvAsInt("SCORER_MIN_LENGTH", 1000),
			FallbackSize:   getEnvAsInt("SCORER_FALLBACK_SIZE", 30000),
			CategoriesFile: getEnv("SCORER_CATEGORIES_FILE", ""),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
		},
		Oracle: OracleConfig{
			RequestsPerSecond: getEnvAsFloat64("ORACLE_RPS", 0.5),
			Burst:             getEnvAsInt("ORACLE_BURST", 1),
			Attempts:          getEnvAsInt("ORACLE_ATTEMPTS", 2),
			Backoff:           getEnvAsDuration("ORACLE_BACKOFF", 2*time.Second),
			CallTimeout:       getEnvAsDuration("ORACLE_CALL_TIMEOUT", 2*time.Minute),
		},
		Cache: CacheConfig{
			RedisAddr: getEnv("REDIS_ADDR", ""),
			TTL:       getEnvAsDuration("REDIS_TTL", 30*24*time.Hour),
		},
		Pipeline: PipelineConfig{
			DocumentWorkers: getEnvAsInt("PIPELINE_WORKERS", 4),
			ProjectWorkers:  getEnvAsInt("PIPELINE_PROJECT_WORKERS", 2),
			ProjectTimeout:  getEnvAsDuration("PIPELINE_PROJECT_TIMEOUT", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
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

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// Validate checks the settings every command needs (database access).
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("DB_DRIVER", c.Database.Driver, Required, OneOf("postgres", "sqlite"))
	v.Field("DB_URL", c.Database.DSN, Required)
	v.Field("SCORER_WINDOW_SIZE", c.Scorer.WindowSize, Positive)
	v.Field("SCORER_BUDGET", c.Scorer.Budget, Positive)
	v.Field("SCORER_FALLBACK_SIZE", c.Scorer.FallbackSize, Positive)
	v.Field("ORACLE_ATTEMPTS", c.Oracle.Attempts, Positive)
	v.Field("PIPELINE_WORKERS", c.Pipeline.DocumentWorkers, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateOracle checks the settings required to call the extraction service.
func (c *Config) ValidateOracle() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_BASE_URL is required", ErrInvalidInput)
	}
	return nil
}

// ValidateServer checks the settings required by the serve command.
func (c *Config) ValidateServer() error {
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
