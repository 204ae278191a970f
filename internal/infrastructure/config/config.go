package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide settings surface, loaded once at startup and
// passed down to every package that needs it rather than read from the
// environment ad hoc.
type Config struct {
	Port     string
	LogLevel string

	DatabaseDSN string

	RedisURL string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	// QdrantAddress is optional — empty means the bun/Postgres VectorIndex
	// implementation is used instead of the Qdrant-backed one.
	QdrantAddress string

	// KafkaBrokers is optional — empty means events fan out only to the
	// in-memory/WebSocket sinks, with no durable Kafka sink registered.
	KafkaBrokers []string

	JWTSecret string

	SandboxInterpreterPath string
	SandboxTimeout         time.Duration

	NodeTimeout     time.Duration
	WorkflowTimeout time.Duration

	MaxParallelNodes int
}

// Load reads configuration from the environment, optionally overlaid by a
// local .env file — mirrors the teacher's own Load, generalized from three
// fields to this repo's full settings surface.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		QdrantAddress: getEnv("QDRANT_ADDRESS", ""),
		KafkaBrokers:  getEnvList("KAFKA_BROKERS"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		SandboxInterpreterPath: getEnv("SANDBOX_INTERPRETER_PATH", "/usr/local/bin/intentflow-sandbox"),
		SandboxTimeout:         getEnvDuration("SANDBOX_TIMEOUT_SECONDS", 60*time.Second),

		NodeTimeout:     getEnvDuration("NODE_TIMEOUT_SECONDS", 5*time.Minute),
		WorkflowTimeout: getEnvDuration("WORKFLOW_TIMEOUT_SECONDS", 30*time.Minute),

		MaxParallelNodes: getEnvInt("MAX_PARALLEL_NODES", 10),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}
