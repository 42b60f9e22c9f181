package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the VulnHunter server.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	AI        AIConfig
	Scan      ScanConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// LogConfig controls the process logger. File is optional; when set, logs are
// also written to a size-rotated file.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	MaxTokens        int
	OpenAI           OpenAIConfig
	VLLM             VLLMConfig
	Ollama           OllamaConfig
}

// OpenAIConfig targets any OpenAI-compatible chat-completions endpoint.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	ReviewModel string
}

type VLLMConfig struct {
	BaseURL     string
	Model       string
	ReviewModel string
}

type OllamaConfig struct {
	BaseURL     string
	Model       string
	ReviewModel string
}

// ScanConfig holds the upload and job-runner limits.
type ScanConfig struct {
	BatchSize      int
	RateLimitPause time.Duration
	MaxFiles       int
	MaxFileBytes   int64
	StagingTTL     time.Duration
}

var validProviders = map[string]bool{
	"openai": true,
	"vllm":   true,
	"ollama": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	openAIModel := envString("OPENAI_MODEL", "llama-3.1-8b-instant")
	vllmModel := envString("VLLM_MODEL", "")
	ollamaModel := envString("OLLAMA_MODEL", "llama3")

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("VULNHUNTER_PORT", 8080),
			Env:  envString("VULNHUNTER_ENV", "development"),
		},
		Log: LogConfig{
			Level:      strings.ToLower(envString("LOG_LEVEL", "info")),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 10),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 30),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			MaxTokens:        envInt("AI_MAX_TOKENS", 2000),
			OpenAI: OpenAIConfig{
				BaseURL:     envString("OPENAI_BASE_URL", "https://api.groq.com/openai/v1"),
				APIKey:      os.Getenv("OPENAI_API_KEY"),
				Model:       openAIModel,
				ReviewModel: envString("OPENAI_REVIEW_MODEL", openAIModel),
			},
			VLLM: VLLMConfig{
				BaseURL:     envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:       vllmModel,
				ReviewModel: envString("VLLM_REVIEW_MODEL", vllmModel),
			},
			Ollama: OllamaConfig{
				BaseURL:     envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:       ollamaModel,
				ReviewModel: envString("OLLAMA_REVIEW_MODEL", ollamaModel),
			},
		},
		Scan: ScanConfig{
			BatchSize:      envInt("SCAN_BATCH_SIZE", 2),
			RateLimitPause: envDuration("SCAN_RATE_LIMIT_PAUSE", 60*time.Second),
			MaxFiles:       envInt("SCAN_MAX_FILES", 20),
			MaxFileBytes:   int64(envInt("SCAN_MAX_FILE_BYTES", 1_000_000)),
			StagingTTL:     envDuration("STAGING_TTL", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, vllm, ollama; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", c.AI.MaxTokens)
	}

	if c.Scan.BatchSize < 1 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be at least 1, got %d", c.Scan.BatchSize)
	}
	if c.Scan.MaxFiles < 1 {
		return fmt.Errorf("SCAN_MAX_FILES must be at least 1, got %d", c.Scan.MaxFiles)
	}
	if c.Scan.MaxFileBytes < 1 {
		return fmt.Errorf("SCAN_MAX_FILE_BYTES must be at least 1, got %d", c.Scan.MaxFileBytes)
	}
	if c.Scan.RateLimitPause < 0 {
		return fmt.Errorf("SCAN_RATE_LIMIT_PAUSE must not be negative")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
