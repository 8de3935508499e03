package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// NoTimeout is the explicit "wait until a terminal state" timeout value.
const NoTimeout time.Duration = -1

// Config holds all application configuration
type Config struct {
	Remote   RemoteConfig
	Pipeline PipelineConfig
	Store    StoreConfig
}

// RemoteConfig holds the extraction service endpoint and credentials
type RemoteConfig struct {
	BaseURL       string
	EmbeddingsURL string
	ClientID      string
	APIKey        string
	APISecret     string
	Timeout       time.Duration
	UploadTimeout time.Duration
	VerifyTimeout time.Duration
	StrictPDF     bool
}

// PipelineConfig holds orchestration defaults
type PipelineConfig struct {
	Concurrency       int
	EmbeddingInterval time.Duration
	EmbeddingTimeout  time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration
	RetryAttempts     int
	RetryBackoff      time.Duration
}

// StoreConfig holds run-history persistence configuration
type StoreConfig struct {
	Driver          string // sqlite | postgres | none
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:       getEnv("NEBUIA_BASE_URL", "https://clients-copilot.nebuia.com"),
			EmbeddingsURL: getEnv("NEBUIA_EMBEDDINGS_URL", "https://embeddings-distributor.nebuia.com"),
			ClientID:      getEnv("NEBUIA_CLIENT_ID", ""),
			APIKey:        getEnv("NEBUIA_API_KEY", ""),
			APISecret:     getEnv("NEBUIA_API_SECRET", ""),
			Timeout:       getEnvAsDuration("NEBUIA_TIMEOUT", 300*time.Second),
			UploadTimeout: getEnvAsDuration("NEBUIA_UPLOAD_TIMEOUT", 900*time.Second),
			VerifyTimeout: getEnvAsDuration("NEBUIA_VERIFY_TIMEOUT", 900*time.Second),
			StrictPDF:     getEnvAsBool("NEBUIA_STRICT_PDF", false),
		},
		Pipeline: PipelineConfig{
			Concurrency:       getEnvAsInt("PIPELINE_CONCURRENCY", 4),
			EmbeddingInterval: getEnvAsDuration("PIPELINE_EMBED_INTERVAL", 5*time.Second),
			EmbeddingTimeout:  getEnvAsTimeout("PIPELINE_EMBED_TIMEOUT", 180*time.Second),
			PollInterval:      getEnvAsDuration("PIPELINE_POLL_INTERVAL", 10*time.Second),
			PollTimeout:       getEnvAsTimeout("PIPELINE_POLL_TIMEOUT", 300*time.Second),
			RetryAttempts:     getEnvAsInt("PIPELINE_RETRY_ATTEMPTS", 3),
			RetryBackoff:      getEnvAsDuration("PIPELINE_RETRY_BACKOFF", 2*time.Second),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "sqlite"),
			DSN:             getEnv("STORE_DSN", "recordflow.db"),
			MaxConns:        getEnvAsInt32("STORE_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("STORE_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("STORE_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("STORE_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("STORE_DIAL_TIMEOUT", 3*time.Second),
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

// getEnvAsTimeout is getEnvAsDuration where "none" or a non-positive value
// selects NoTimeout.
func getEnvAsTimeout(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if strings.EqualFold(value, "none") {
		return NoTimeout
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return NoTimeout
		}
		return d
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("NEBUIA_BASE_URL", c.Remote.BaseURL, Required).
		Field("NEBUIA_CLIENT_ID", c.Remote.ClientID, Required).
		Field("NEBUIA_API_KEY", c.Remote.APIKey, Required).
		Field("NEBUIA_API_SECRET", c.Remote.APISecret, Required).
		Field("PIPELINE_EMBED_INTERVAL", c.Pipeline.EmbeddingInterval, PositiveDuration).
		Field("PIPELINE_POLL_INTERVAL", c.Pipeline.PollInterval, PositiveDuration).
		Field("PIPELINE_CONCURRENCY", c.Pipeline.Concurrency, NonNegative).
		Field("PIPELINE_RETRY_ATTEMPTS", c.Pipeline.RetryAttempts, NonNegative)
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		v.Field("STORE_DRIVER", c.Store.Driver, func(f string, val interface{}) *FieldError {
			return &FieldError{Field: f, Value: val, Message: "must be sqlite, postgres or none"}
		})
	}
	return v.Err(CodeConfig)
}
