// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	MeiliHost      string
	MeiliMasterKey string

	EmbeddingsProvider   string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	LocalEmbedDimensions int

	CohereAPIKey      string
	CohereRerankModel string

	CollectionsSeed string
	ChunkMaxTokens  int

	SearchDefaultTopK    int
	SearchRRFConstant    int
	SearchCandidateLimit int
	EmbedTimeout         time.Duration
	BranchTimeout        time.Duration
	RerankTimeout        time.Duration

	WorkerMetricsPort string
}

func Load() (*Config, error) {
	cfg := &Config{
		APIPort:  envOr("API_PORT", "8080"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		NATSSubject: envOr("NATS_SUBJECT", "articles.events"),

		MeiliHost:      envOr("MEILI_HOST", "http://localhost:7700"),
		MeiliMasterKey: os.Getenv("MEILI_MASTER_KEY"),

		EmbeddingsProvider: envOr("EMBEDDINGS_PROVIDER", "local"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      envOr("OPENAI_BASE_URL", "https://api.openai.com"),

		CohereAPIKey:      os.Getenv("COHERE_API_KEY"),
		CohereRerankModel: envOr("COHERE_RERANK_MODEL", "rerank-english-v3.0"),

		CollectionsSeed: envOr("COLLECTIONS_SEED", "config/collections.yaml"),

		WorkerMetricsPort: envOr("WORKER_METRICS_PORT", "9090"),
	}

	var err error
	if cfg.PostgresDSN, err = mustEnv("POSTGRES_DSN"); err != nil {
		return nil, err
	}
	if cfg.NATSURL, err = mustEnv("NATS_URL"); err != nil {
		return nil, err
	}

	if cfg.LocalEmbedDimensions, err = envInt("LOCAL_EMBED_DIMENSIONS", 256); err != nil {
		return nil, err
	}
	if cfg.ChunkMaxTokens, err = envInt("CHUNK_MAX_TOKENS", 900); err != nil {
		return nil, err
	}
	if cfg.SearchDefaultTopK, err = envInt("SEARCH_DEFAULT_TOP_K", 6); err != nil {
		return nil, err
	}
	if cfg.SearchRRFConstant, err = envInt("SEARCH_RRF_K", 60); err != nil {
		return nil, err
	}
	if cfg.SearchCandidateLimit, err = envInt("SEARCH_CANDIDATE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.EmbedTimeout, err = envDuration("SEARCH_EMBED_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BranchTimeout, err = envDuration("SEARCH_BRANCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RerankTimeout, err = envDuration("SEARCH_RERANK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	switch cfg.EmbeddingsProvider {
	case "local":
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("config: OPENAI_API_KEY is required when EMBEDDINGS_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("config: unknown EMBEDDINGS_PROVIDER %q", cfg.EmbeddingsProvider)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return value, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, raw)
	}
	return value, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration, got %q", key, raw)
	}
	return value, nil
}
