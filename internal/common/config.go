package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Executor ExecutorConfig
	Jobs     JobsConfig
	Producer ProducerConfig
	LLM      LLMConfig
	Log      LogConfig
}

// DatabaseConfig holds job store configuration
type DatabaseConfig struct {
	Driver           string // memory | postgres | sqlite
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
	HubBuffer       int
	PingInterval    time.Duration
}

// ExecutorConfig holds worker pool and reaper configuration
type ExecutorConfig struct {
	Workers        int
	QueueSize      int
	MaxRunDuration time.Duration
	PendingTTL     time.Duration
	ReaperSchedule string
	ReaperGrace    time.Duration
}

// JobsConfig holds submission rules
type JobsConfig struct {
	MinResults     int
	MaxResults     int
	DefaultResults int
	MaxQueryLength int
}

// ProducerConfig selects and configures the extraction producer
type ProducerConfig struct {
	Kind           string // sample | remote | llm
	ScraperURL     string
	ScraperTimeout time.Duration
	ItemDelay      time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProducerSample = "sample"
	ProducerRemote = "remote"
	ProducerLLM    = "llm"
)

// LoadEnvFile preloads variables from a dotenv file. A missing file is not an error
// and variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return WrapError(err, "load env file")
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "scrape-jobs.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:        normalizeAddr(getEnv("HTTP_ADDR", ":8000")),
			GRPCAddr:        normalizeAddr(getEnv("GRPC_ADDR", ":9090")),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			HubBuffer:       getEnvAsInt("HUB_BUFFER", 64),
			PingInterval:    getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
		},
		Executor: ExecutorConfig{
			Workers:        getEnvAsInt("EXECUTOR_WORKERS", 4),
			QueueSize:      getEnvAsInt("EXECUTOR_QUEUE_SIZE", 256),
			MaxRunDuration: getEnvAsDuration("EXECUTOR_MAX_RUN", 3*time.Minute),
			PendingTTL:     getEnvAsDuration("EXECUTOR_PENDING_TTL", 30*time.Minute),
			ReaperSchedule: getEnv("REAPER_SCHEDULE", "@every 1m"),
			ReaperGrace:    getEnvAsDuration("REAPER_GRACE", 30*time.Second),
		},
		Jobs: JobsConfig{
			MinResults:     getEnvAsInt("MIN_RESULTS", 5),
			MaxResults:     getEnvAsInt("MAX_RESULTS", 50),
			DefaultResults: getEnvAsInt("DEFAULT_RESULTS", 15),
			MaxQueryLength: getEnvAsInt("MAX_QUERY_LENGTH", 500),
		},
		Producer: ProducerConfig{
			Kind:           strings.ToLower(getEnv("PRODUCER", ProducerSample)),
			ScraperURL:     getEnv("SCRAPER_URL", "http://localhost:3000"),
			ScraperTimeout: getEnvAsDuration("SCRAPER_TIMEOUT", 60*time.Second),
			ItemDelay:      getEnvAsDuration("SAMPLE_ITEM_DELAY", 300*time.Millisecond),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
}

// SlogLevel maps LOG_LEVEL onto slog levels.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
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

func normalizeAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required when STORE_DRIVER=postgres", ErrInvalidInput)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return NewAppError("CONFIG_ERROR", "SQLITE_PATH is required when STORE_DRIVER=sqlite", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be memory, postgres or sqlite", ErrInvalidInput)
	}

	switch c.Producer.Kind {
	case ProducerSample:
	case ProducerRemote:
		if c.Producer.ScraperURL == "" {
			return NewAppError("CONFIG_ERROR", "SCRAPER_URL is required when PRODUCER=remote", ErrInvalidInput)
		}
	case ProducerLLM:
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required when PRODUCER=llm", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "PRODUCER must be sample, remote or llm", ErrInvalidInput)
	}

	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Jobs.MinResults < 1 || c.Jobs.MaxResults < c.Jobs.MinResults {
		return NewAppError("CONFIG_ERROR", "MIN_RESULTS must be >= 1 and <= MAX_RESULTS", ErrInvalidInput)
	}
	if c.Jobs.DefaultResults < c.Jobs.MinResults || c.Jobs.DefaultResults > c.Jobs.MaxResults {
		return NewAppError("CONFIG_ERROR", "DEFAULT_RESULTS must be within [MIN_RESULTS, MAX_RESULTS]", ErrInvalidInput)
	}
	if c.Executor.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "EXECUTOR_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Executor.MaxRunDuration <= 0 {
		return NewAppError("CONFIG_ERROR", "EXECUTOR_MAX_RUN must be positive", ErrInvalidInput)
	}
	return nil
}
