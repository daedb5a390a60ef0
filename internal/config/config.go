package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Nats      NatsConfig
	Otel      OtelConfig
	Auth      AuthConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Pipeline  PipelineConfig
	WebSocket WebSocketConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SocketLogFilePath  string
	CorsAllowedOrigins string
	InstanceID         string
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

type DatabaseConfig struct {
	Connection string
}

type RedisConfig struct {
	URL     string
	Enabled bool
}

type NatsConfig struct {
	URL     string
	Enabled bool
}

type OtelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type AuthConfig struct {
	JWTSecret      string
	AllowAnonymous bool
}

type AIConfig struct {
	LLMProvider       string // "ollama", "huggingface", "openai"
	LLMModel          string
	OllamaBaseURL     string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	HuggingFaceAPIKey string

	EmbeddingProvider string // "ollama", "gemini" or "jina"
	EmbeddingModel    string
	GoogleGeminiKey   string
	JinaAPIKey        string
}

type RetrievalConfig struct {
	Backend          string // "pgvector" or "qdrant"
	TopK             int
	MinScore         float64
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string
	CacheTTL         time.Duration
	IndexLanguage    string
	TranslateQueries bool
	TranslateTimeout time.Duration
}

type PipelineConfig struct {
	WorkerPoolSize     int
	HistoryLimit       int
	HistoryPageSize    int
	RetrievalTimeout   time.Duration
	GenerationTimeout  time.Duration
	SuggestionTimeout  time.Duration
	MaxTokens          int
	Temperature        float64
	DefaultLanguage    string
	NoAnswerPhrases    []string
	SuggestionProvider string // "heuristic" or "llm"
}

type WebSocketConfig struct {
	MaxMessageSize int64
	SendBuffer     int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	hostname, _ := os.Hostname()

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SocketLogFilePath:  getEnv("SOCKET_LOG_FILE_PATH", "logs/socket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			InstanceID:         getEnv("INSTANCE_ID", hostname),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", "redis://localhost:6379"),
			Enabled: getEnvAsBool("REDIS_ENABLED", true),
		},
		Nats: NatsConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", true),
		},
		Otel: OtelConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "rag-chat-be"),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AllowAnonymous: getEnvAsBool("ALLOW_ANONYMOUS", false),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "http://localhost:1234/v1"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			GoogleGeminiKey:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JinaAPIKey:        getEnv("JINA_API_KEY", ""),
		},
		Retrieval: RetrievalConfig{
			Backend:          getEnv("RETRIEVAL_BACKEND", "pgvector"),
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 4),
			MinScore:         getEnvAsFloat("RETRIEVAL_MIN_SCORE", 0.3),
			QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:       getEnvAsInt("QDRANT_PORT", 6334),
			QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "documents"),
			CacheTTL:         getEnvAsDuration("RETRIEVAL_CACHE_TTL", 5*time.Minute),
			IndexLanguage:    getEnv("INDEX_LANGUAGE", "en"),
			TranslateQueries: getEnvAsBool("TRANSLATE_QUERIES", true),
			TranslateTimeout: getEnvAsDuration("TRANSLATE_TIMEOUT", 3*time.Second),
		},
		Pipeline: PipelineConfig{
			WorkerPoolSize:     getEnvAsInt("WORKER_POOL_SIZE", 8),
			HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 5),
			HistoryPageSize:    getEnvAsInt("HISTORY_PAGE_SIZE", 50),
			RetrievalTimeout:   getEnvAsDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
			GenerationTimeout:  getEnvAsDuration("GENERATION_TIMEOUT", 45*time.Second),
			SuggestionTimeout:  getEnvAsDuration("SUGGESTION_TIMEOUT", 5*time.Second),
			MaxTokens:          getEnvAsInt("GENERATION_MAX_TOKENS", 1000),
			Temperature:        getEnvAsFloat("GENERATION_TEMPERATURE", 0.7),
			DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", "en"),
			NoAnswerPhrases:    getEnvAsList("NO_ANSWER_PHRASES", []string{"don't know", "not covered"}),
			SuggestionProvider: getEnv("SUGGESTION_PROVIDER", "heuristic"),
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			SendBuffer:     getEnvAsInt("WS_SEND_BUFFER", 256),
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
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
