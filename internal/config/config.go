package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process settings read from the environment.
type Config struct {
	Port          string
	Env           string
	AICQURL       string
	AICQConfigDir string
	CharacterFile string

	MemoryBackend string
	RedisURL      string
	DatabaseURL   string
	SQLitePath    string

	GenAIAPIKey         string
	GenAIModel          string
	GenAIEmbeddingModel string

	// WebhookPublicKeys maps agent ids allowed to push events to their
	// base64 Ed25519 public keys.
	WebhookPublicKeys map[string]string

	PollInterval     time.Duration
	MaxMessageLength int
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		AICQURL:             getEnv("AICQ_URL", "https://aicq.ai"),
		AICQConfigDir:       os.Getenv("AICQ_CONFIG"),
		CharacterFile:       getEnv("CHARACTER_FILE", "character.yaml"),
		MemoryBackend:       getEnv("MEMORY_BACKEND", "redis"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          getEnv("SQLITE_PATH", "./data/agent.db"),
		GenAIAPIKey:         os.Getenv("GENAI_API_KEY"),
		GenAIModel:          os.Getenv("GENAI_MODEL"),
		GenAIEmbeddingModel: os.Getenv("GENAI_EMBEDDING_MODEL"),
		WebhookPublicKeys:   parseKeyList(os.Getenv("WEBHOOK_PUBLIC_KEYS")),
		PollInterval:        getDuration("POLL_INTERVAL", 5*time.Second),
		MaxMessageLength:    getInt("MAX_MESSAGE_LENGTH", 4096),
	}

	if cfg.Env == "production" {
		if os.Getenv("AICQ_URL") == "" {
			panic("AICQ_URL is required in production")
		}
		if cfg.GenAIAPIKey == "" {
			panic("GENAI_API_KEY is required in production")
		}
		switch cfg.MemoryBackend {
		case "postgres":
			if cfg.DatabaseURL == "" {
				panic("DATABASE_URL is required in production")
			}
		case "redis":
			if os.Getenv("REDIS_URL") == "" {
				panic("REDIS_URL is required in production")
			}
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

// parseKeyList parses comma-separated id=key pairs.
func parseKeyList(raw string) map[string]string {
	keys := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		id, key, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" || key == "" {
			continue
		}
		keys[strings.TrimSpace(id)] = strings.TrimSpace(key)
	}
	return keys
}
