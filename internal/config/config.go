package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	WhatsApp WhatsAppConfig
	Flow     FlowConfig
	Ai       AIConfig
	Ingest   IngestConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	StaticDir          string
}

type DatabaseConfig struct {
	Connection string
}

type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	VerifyToken   string
	APIVersion    string
}

type FlowConfig struct {
	InitialStep    string
	SessionTimeout int // seconds
	DebounceWindow int // seconds
	FallbackText   string
}

type AIConfig struct {
	HandoffStep       string
	PollInterval      int // seconds, floor 1
	BatchSize         int
	HistoryLimit      int
	TopK              int
	CacheTTL          int // seconds
	MaxSentences      int
	MaxChars          int
	MaxImages         int
	FallbackMessage   string
	ErrorMessage      string
	EmptyIndexMessage string
	DefaultImageURL   string

	EmbeddingProvider string // "openai" or "ollama"
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	EmbeddingModel    string
	LLMProvider       string
	LLMModel          string
	OllamaBaseURL     string
	IndexBasePath     string
}

type IngestConfig struct {
	OcrDPI           int
	OcrLang          string
	PageImageDir     string
	PageImageFormat  string
	PageImageScale   float64
	PageImageQuality int
	EmbedBatchSize   int
	ComboSimilarity  float64
	EntityNames      string // comma-separated overrides for the canonical catalog
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			StaticDir:          getEnv("STATIC_DIR", "./static"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		WhatsApp: WhatsAppConfig{
			Token:         getEnv("WHATSAPP_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v19.0"),
		},
		Flow: FlowConfig{
			InitialStep:    getEnv("FLOW_INITIAL_STEP", "menu_principal"),
			SessionTimeout: getEnvAsInt("FLOW_SESSION_TIMEOUT", 600),
			DebounceWindow: getEnvAsInt("FLOW_DEBOUNCE_WINDOW", 3),
			FallbackText:   getEnv("FLOW_FALLBACK_TEXT", "No entendí tu mensaje. Escribe *menu* para ver las opciones."),
		},
		Ai: AIConfig{
			HandoffStep:       getEnv("AI_HANDOFF_STEP", "ia_chat"),
			PollInterval:      getEnvAsInt("AI_POLL_INTERVAL", 3),
			BatchSize:         getEnvAsInt("AI_BATCH_SIZE", 10),
			HistoryLimit:      getEnvAsInt("AI_HISTORY_LIMIT", 6),
			TopK:              getEnvAsInt("AI_TOP_K", 4),
			CacheTTL:          getEnvAsInt("AI_CACHE_TTL", 3600),
			MaxSentences:      getEnvAsInt("AI_MAX_SENTENCES", 4),
			MaxChars:          getEnvAsInt("AI_MAX_CHARS", 600),
			MaxImages:         getEnvAsInt("AI_MAX_IMAGES", 3),
			FallbackMessage:   getEnv("AI_FALLBACK_MESSAGE", "Por ahora no tengo una respuesta del catálogo. Un asesor te escribirá en breve."),
			ErrorMessage:      getEnv("AI_ERROR_MESSAGE", "Tuvimos un problema consultando el catálogo. Intenta de nuevo en unos minutos."),
			EmptyIndexMessage: getEnv("AI_EMPTY_INDEX_MESSAGE", "Aún no hay un catálogo cargado. Un asesor te atenderá pronto."),
			DefaultImageURL:   getEnv("AI_DEFAULT_IMAGE_URL", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			IndexBasePath:     getEnv("AI_INDEX_BASE_PATH", "./data/catalog_index"),
		},
		Ingest: IngestConfig{
			OcrDPI:           getEnvAsInt("AI_OCR_DPI", 220),
			OcrLang:          getEnv("AI_OCR_LANG", "spa+eng"),
			PageImageDir:     getEnv("AI_PAGE_IMAGE_DIR", "./static/catalog_pages"),
			PageImageFormat:  getEnv("AI_PAGE_IMAGE_FORMAT", "jpeg"),
			PageImageScale:   getEnvAsFloat("AI_PAGE_IMAGE_SCALE", 1.0),
			PageImageQuality: getEnvAsInt("AI_PAGE_IMAGE_QUALITY", 85),
			EmbedBatchSize:   getEnvAsInt("AI_EMBED_BATCH_SIZE", 20),
			ComboSimilarity:  getEnvAsFloat("AI_COMBO_SIMILARITY", 0.6),
			EntityNames:      getEnv("CATALOG_ENTITY_NAMES", ""),
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
