package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Prometheus    PrometheusConfig
	LLM           LLMConfig
	HTTP          HTTPConfig
	Conversations ConversationConfig
	Monitor       MonitorConfig
	NATS          NATSConfig
	Database      DatabaseConfig
	Tracing       TracingConfig
}

// MonitorConfig holds periodic health broadcast settings. A zero
// interval disables the monitor.
type MonitorConfig struct {
	Interval time.Duration
	Window   time.Duration
}

// PrometheusConfig holds metrics backend connection settings
type PrometheusConfig struct {
	URL          string
	FetchTimeout time.Duration
}

// LLMConfig holds reasoning backend settings. Provider "mock" runs the
// engine without an external service.
type LLMConfig struct {
	Provider         string
	BaseURL          string
	APIKey           string
	Model            string
	Temperature      float64
	MaxTokens        int
	ReasoningTimeout time.Duration
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConversationConfig holds conversation store settings
type ConversationConfig struct {
	TurnCap       int
	IdleMaxAge    time.Duration
	EvictInterval time.Duration
}

// NATSConfig holds event publishing settings
type NATSConfig struct {
	Enabled bool
	URL     string
	Stream  string
}

// DatabaseConfig holds conversation archive settings
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Prometheus: PrometheusConfig{
			URL:          getEnv("PROMETHEUS_URL", "http://localhost:9090"),
			FetchTimeout: getEnvDuration("PROMETHEUS_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Provider:         getEnv("LLM_PROVIDER", "mock"),
			BaseURL:          getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:           getEnv("LLM_API_KEY", ""),
			Model:            getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:      getEnvFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:        getEnvInt("LLM_MAX_TOKENS", 1024),
			ReasoningTimeout: getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		HTTP: HTTPConfig{
			Port:         getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 90*time.Second),
		},
		Conversations: ConversationConfig{
			TurnCap:       getEnvInt("CONVERSATION_TURN_CAP", 10),
			IdleMaxAge:    getEnvDuration("CONVERSATION_IDLE_MAX_AGE", time.Hour),
			EvictInterval: getEnvDuration("CONVERSATION_EVICT_INTERVAL", 5*time.Minute),
		},
		Monitor: MonitorConfig{
			Interval: getEnvDuration("MONITOR_INTERVAL", 0),
			Window:   getEnvDuration("MONITOR_WINDOW", time.Hour),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "agent-events"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("ARCHIVE_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "agent"),
			Password: getEnv("DB_PASSWORD", "agent"),
			Database: getEnv("DB_NAME", "agent"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("SERVICE_NAME", "prometheus-agent"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "localhost:4318"),
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
