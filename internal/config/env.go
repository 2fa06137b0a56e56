package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig defines the HTTP surface and upload limits.
type ServerConfig struct {
	Port              string
	UploadDir         string
	MaxUploadBytes    int64
	SessionSecret     string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// DatabaseConfig defines relational storage and the optional Redis status mirror.
type DatabaseConfig struct {
	URL       string
	RedisURL  string
	StatusTTL time.Duration
}

// StorageConfig defines optional S3 archival of uploaded files.
type StorageConfig struct {
	S3Bucket string
	S3Prefix string
}

// AIConfig defines analysis providers and limits.
type AIConfig struct {
	Engine           string // "gemini"|"openai"|"anthropic"
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiImageModel string
	GenerateImages   bool
	OpenAIAPIKey     string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicModel   string
	Timeout          time.Duration
	RateLimit        float64
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	AI       AIConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/marginalia.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_marginalia",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	maxMB := parseInt(getEnv("MAX_UPLOAD_MB", "16"), 16)
	if maxMB <= 0 {
		maxMB = 16
	}
	cfg.Server = ServerConfig{
		Port:              getEnv("PORT", "5000"),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:    int64(maxMB) << 20,
		SessionSecret:     getEnv("SESSION_SECRET", "dev-secret-key-change-in-production"),
		ReadHeaderTimeout: parseDuration(getEnv("READ_HEADER_TIMEOUT", "10s"), 10*time.Second),
		ShutdownTimeout:   parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	cfg.Database = DatabaseConfig{
		URL:       getEnv("DATABASE_URL", "sqlite://data/marginalia.db"),
		RedisURL:  getEnv("REDIS_URL", ""),
		StatusTTL: parseDuration(getEnv("STATUS_TTL", "24h"), 24*time.Hour),
	}

	cfg.Storage = StorageConfig{
		S3Bucket: getEnv("UPLOAD_S3_BUCKET", ""),
		S3Prefix: getEnv("UPLOAD_S3_PREFIX", "uploads/"),
	}

	cfg.AI = AIConfig{
		Engine:           strings.ToLower(getEnv("AI_ENGINE", "gemini")),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
		GenerateImages:   parseBool(getEnv("GENERATE_IMAGES", "true")),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		Timeout:          parseDuration(getEnv("AI_TIMEOUT", "60s"), 60*time.Second),
		RateLimit:        parseFloat(getEnv("AI_RATE_LIMIT", "2"), 2),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
