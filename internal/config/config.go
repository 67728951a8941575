// Package config provides configuration loading for the assistant daemon.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the daemon.
type Config struct {
	// Server configuration
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration

	// Task store configuration
	TaskStoreType string // "memory" or "redis"
	TaskStoreTTL  time.Duration
	RedisURL      string

	// Task manager configuration
	MaxWorkers    int
	QueueSize     int
	SyncTimeout   time.Duration
	TaskRetention time.Duration
	ReapInterval  time.Duration

	// Capability resolver configuration
	HealthTimeout  time.Duration
	InvokeTimeout  time.Duration
	HealthCacheTTL time.Duration

	// Wiring document (chains + graphs); empty uses the built-in default.
	WiringFile string

	// Provider credentials and endpoints
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	LocalLLMEndpoint  string
	LocalLLMModel     string
	WhisperEndpoint   string
	VectorPersistPath string
	GmailToken        string

	// API auth; empty disables auth.
	BearerToken string

	// CORS configuration
	CORSOrigins []string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Tracing
	OTLPEndpoint   string
	TracingEnabled bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port:          getEnv("PORT", "7080"),
		ReadTimeout:   getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 10*time.Second),

		// Task store
		TaskStoreType: getEnv("MCP_TASKSTORE", "memory"), // "memory" or "redis"
		TaskStoreTTL:  getDuration("TASKSTORE_TTL", 7*24*time.Hour),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),

		// Task manager
		MaxWorkers:    getInt("MCP_MAX_WORKERS", 4),
		QueueSize:     getInt("MCP_QUEUE_SIZE", 1024),
		SyncTimeout:   getDuration("MCP_SYNC_TIMEOUT", 2*time.Minute),
		TaskRetention: getDuration("MCP_TASK_RETENTION", 24*time.Hour),
		ReapInterval:  getDuration("MCP_REAP_INTERVAL", 10*time.Minute),

		// Resolver
		HealthTimeout:  getDuration("MCP_HEALTH_TIMEOUT", 2*time.Second),
		InvokeTimeout:  getDuration("MCP_INVOKE_TIMEOUT", 60*time.Second),
		HealthCacheTTL: getDuration("MCP_HEALTH_CACHE_TTL", 10*time.Second),

		// Wiring
		WiringFile: getEnv("MCP_WIRING_FILE", ""),

		// Providers
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		LocalLLMEndpoint:  getEnv("LOCAL_LLM_ENDPOINT", "http://127.0.0.1:11434"),
		LocalLLMModel:     getEnv("LOCAL_LLM_MODEL", "llama3.2"),
		WhisperEndpoint:   getEnv("WHISPER_ENDPOINT", "http://127.0.0.1:9090"),
		VectorPersistPath: getEnv("VECTOR_PERSIST_PATH", ""),
		GmailToken:        getEnv("GMAIL_TOKEN", ""),

		// Auth
		BearerToken: getEnv("MCP_BEARER_TOKEN", ""),

		// CORS
		CORSOrigins: getStringSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		// Rate limiting
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 100.0),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 200),

		// Tracing
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getBool("TRACING_ENABLED", false),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		return strings.Split(val, ",")
	}
	return defaultVal
}
