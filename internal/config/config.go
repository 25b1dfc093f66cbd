package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Memory    MemoryConfig
	Ingest    IngestConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	RelevanceModel   string // model used for cross-encoder style relevance scoring
}

type RetrievalConfig struct {
	TopK                int
	RerankTopK          int
	SimilarityThreshold float64
	EmbeddingModel      string
	EmbeddingFallback   string // provider tried when the primary embed call fails
	EmbeddingDim        int
}

type MemoryConfig struct {
	Window int
	TTL    time.Duration
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	UploadDir    string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	topK, err := getEnvInt("RETRIEVAL_TOP_K", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_TOP_K: %w", err)
	}

	rerankTopK, err := getEnvInt("RETRIEVAL_RERANK_TOP_K", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_RERANK_TOP_K: %w", err)
	}

	threshold, err := getEnvFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.7)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_SIMILARITY_THRESHOLD: %w", err)
	}

	embedDim, err := getEnvInt("EMBEDDING_DIM", 768)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_DIM: %w", err)
	}

	memWindow, err := getEnvInt("MEMORY_WINDOW", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid MEMORY_WINDOW: %w", err)
	}

	memTTLHours, err := getEnvInt("MEMORY_TTL_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid MEMORY_TTL_HOURS: %w", err)
	}

	chunkSize, err := getEnvInt("INGEST_CHUNK_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid INGEST_CHUNK_SIZE: %w", err)
	}

	chunkOverlap, err := getEnvInt("INGEST_CHUNK_OVERLAP", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid INGEST_CHUNK_OVERLAP: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "ollama"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gemma3:4b"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
			RelevanceModel:   getEnv("LLM_RELEVANCE_MODEL", ""),
		},
		Retrieval: RetrievalConfig{
			TopK:                topK,
			RerankTopK:          rerankTopK,
			SimilarityThreshold: threshold,
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingFallback:   getEnv("EMBEDDING_FALLBACK_PROVIDER", ""),
			EmbeddingDim:        embedDim,
		},
		Memory: MemoryConfig{
			Window: memWindow,
			TTL:    time.Duration(memTTLHours) * time.Hour,
		},
		Ingest: IngestConfig{
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
			UploadDir:    getEnv("UPLOAD_DIR", "./uploads"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}
