package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Session storage
	UseMemoryStore bool
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	SessionTTL     time.Duration

	// LLM backend (OpenAI-compatible endpoint; Cerebras by default)
	CerebrasAPIKey  string
	CerebrasBaseURL string
	ChatModel       string
	AnalyzerModel   string
	LLMTimeout      time.Duration

	// Fallback LLM backend (optional second OpenAI-compatible endpoint)
	FallbackAPIKey  string
	FallbackBaseURL string
	FallbackModel   string

	// Agent behavior
	AgentMode      string
	HistoryWindow  int
	NudgeThreshold int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		UseMemoryStore: getEnvAsBool("USE_MEMORY_STORE", false),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 0),

		CerebrasAPIKey:  getEnv("CEREBRAS_API_KEY", ""),
		CerebrasBaseURL: getEnv("CEREBRAS_BASE_URL", "https://api.cerebras.ai/v1"),
		ChatModel:       getEnv("CHAT_MODEL", "llama3.3-70b"),
		AnalyzerModel:   getEnv("ANALYZER_MODEL", "llama3.3-70b"),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		FallbackAPIKey:  getEnv("FALLBACK_API_KEY", ""),
		FallbackBaseURL: getEnv("FALLBACK_BASE_URL", ""),
		FallbackModel:   getEnv("FALLBACK_MODEL", ""),

		AgentMode:      getEnv("AGENT_MODE", "SDR"),
		HistoryWindow:  getEnvAsInt("HISTORY_WINDOW", 5),
		NudgeThreshold: getEnvAsInt("NUDGE_THRESHOLD", 2),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
