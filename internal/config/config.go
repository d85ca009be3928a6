package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Cache    CacheConfig
	History  HistoryConfig
	Pipeline PipelineConfig
	Stream   StreamConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	PipelineLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "openai"
	LLMProvider       string // "ollama" or "openai"
	LLMModel          string // e.g. "llama3", "gpt-4o-mini"
	EmbeddingModel    string
	OllamaBaseURL     string
	OpenAIBaseURL     string
	OpenAIKey         string
	SerperKey         string
	SerperEndpoint    string
}

type CacheConfig struct {
	Threshold   float64 // minimum cosine similarity for a semantic hit
	TTL         time.Duration
	Capacity    int
	Backend     string // "file" or "redis"
	FilePath    string
	RedisKey    string
	EmbedTopic  string // watermill topic for document embedding jobs
}

type HistoryConfig struct {
	MaxTurns  int
	WindowTTL time.Duration
}

type PipelineConfig struct {
	TopK                int
	ContextBudget       int
	CollaboratorTimeout time.Duration
	RetrieverThreshold  float64
}

type StreamConfig struct {
	Buffer        int
	IdleKeepalive time.Duration
	ChunkSize     int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			PipelineLogPath:    getEnv("PIPELINE_LOG_PATH", "logs/pipeline.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			SerperKey:         getEnv("SERPER_API_KEY", ""),
			SerperEndpoint:    getEnv("SERPER_ENDPOINT", ""),
		},
		Cache: CacheConfig{
			Threshold:  getEnvAsFloat("CACHE_SIMILARITY_THRESHOLD", 0.85),
			TTL:        time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
			Capacity:   getEnvAsInt("CACHE_CAPACITY", 1000),
			Backend:    getEnv("CACHE_BACKEND", "file"),
			FilePath:   getEnv("CACHE_FILE_PATH", "data/similarity_cache.json"),
			RedisKey:   getEnv("CACHE_REDIS_KEY", "similarity_cache:entries"),
			EmbedTopic: getEnv("EMBED_DOCUMENT_TOPIC_NAME", "EMBED_DOCUMENT_CONTENT"),
		},
		History: HistoryConfig{
			MaxTurns:  getEnvAsInt("HISTORY_MAX_TURNS", 5),
			WindowTTL: time.Duration(getEnvAsInt("HISTORY_WINDOW_TTL_SECONDS", 300)) * time.Second,
		},
		Pipeline: PipelineConfig{
			TopK:                getEnvAsInt("PIPELINE_TOP_K", 5),
			ContextBudget:       getEnvAsInt("PIPELINE_CONTEXT_BUDGET", 4000),
			CollaboratorTimeout: time.Duration(getEnvAsInt("PIPELINE_COLLABORATOR_TIMEOUT_SECONDS", 30)) * time.Second,
			RetrieverThreshold:  getEnvAsFloat("RETRIEVER_SIMILARITY_THRESHOLD", 0.3),
		},
		Stream: StreamConfig{
			Buffer:        getEnvAsInt("STREAM_BUFFER", 16),
			IdleKeepalive: time.Duration(getEnvAsInt("STREAM_IDLE_KEEPALIVE_SECONDS", 15)) * time.Second,
			ChunkSize:     getEnvAsInt("STREAM_CHUNK_SIZE", 400),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
