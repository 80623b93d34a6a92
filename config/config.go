// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Vector store backends selectable via VECTOR_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all runtime settings for the service
type Config struct {
	// LLM provider
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	EmbedModel    string

	// Document processing
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	MaxResults int
	MaxHistory int

	// Vector store
	VectorBackend string
	VectorDBPath  string
	DatabaseURL   string

	// Optional embedding cache
	RedisAddr     string
	RedisPassword string

	// Service
	DocsDir    string
	ServerPort string
	LogLevel   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EmbedModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),

		MaxResults: getEnvInt("MAX_RESULTS", 5),
		MaxHistory: getEnvInt("MAX_HISTORY", 2),

		VectorBackend: getEnv("VECTOR_BACKEND", BackendSqlite),
		VectorDBPath:  getEnv("VECTOR_DB_PATH", "./courserag.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DocsDir:    getEnv("DOCS_DIR", "./docs"),
		ServerPort: getEnv("SERVER_PORT", "8000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be positive, got %d", c.MaxResults)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("MAX_HISTORY must not be negative, got %d", c.MaxHistory)
	}

	switch c.VectorBackend {
	case BackendMemory:
	case BackendSqlite:
		if c.VectorDBPath == "" {
			return fmt.Errorf("VECTOR_DB_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q (want memory, sqlite or postgres)", c.VectorBackend)
	}

	return nil
}

// getEnv reads an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable with a fallback default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
