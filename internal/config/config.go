package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the SwarmGate coordination plane.
type Config struct {
	Port      int
	Version   string
	Index     IndexConfig
	Telemetry TelemetryConfig
}

// IndexConfig configures the vector messaging index.
type IndexConfig struct {
	// DefaultCollection is the collection used for message documents
	// when none is specified.
	DefaultCollection string

	// EmbeddingProvider selects the embedding driver: "ollama" (local
	// model) or "openai" (remote API).
	EmbeddingProvider string
	EmbeddingModel    string
	OpenAIAPIKey      string
	OllamaEndpoint    string

	// VectorStore selects the store driver: "embedded" or "pgvector".
	VectorStore string

	// PersistDir is where the embedded store keeps its snapshot.
	// Empty disables persistence.
	PersistDir string

	// PgvectorURL is the PostgreSQL connection URL for the pgvector
	// driver.
	PgvectorURL string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("SWARMGATE_PORT", 8080),
		Version: envStr("SWARMGATE_VERSION", "0.2.0"),
		Index: IndexConfig{
			DefaultCollection: envStr("SWARMGATE_DEFAULT_COLLECTION", "messages"),
			EmbeddingProvider: envStr("SWARMGATE_EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    envStr("SWARMGATE_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
			OllamaEndpoint:    envStr("SWARMGATE_OLLAMA_ENDPOINT", "http://localhost:11434"),
			VectorStore:       envStr("SWARMGATE_VECTOR_STORE", "embedded"),
			PersistDir:        envStr("SWARMGATE_PERSIST_DIR", ""),
			PgvectorURL:       envStr("SWARMGATE_PGVECTOR_URL", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "swarmgate"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
