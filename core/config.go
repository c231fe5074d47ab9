package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the server reads from the environment. Defaults
// match env.example so a bare container comes up with sensible behavior.
type Config struct {
	// Server.
	Host string
	Port int
	// Workers is accepted for compatibility with older deployments that set it.
	// The server always runs as a single process; the value is only logged.
	Workers     int
	CORSOrigins []string

	// Auth. Empty Accounts disables authentication entirely.
	Accounts         map[string]string
	TokenExpireHours int

	// Directories. All are created on Load.
	InputDir   string
	OutputDir  string
	WorkingDir string
	LogDir     string

	// Parsing and chunking.
	Parser             string
	ParseMethod        string
	ChunkTokens        int
	ChunkOverlap       int
	DisplayStats       bool
	EnableImages       bool
	EnableTables       bool
	EnableEquations    bool
	MaxConcurrentFiles int

	// Retrieval context assembly.
	TopK             int
	ContextWindow    int
	ContextMode      string
	MaxContextTokens int

	// Concurrency toward the model APIs.
	MaxAsync       int
	EmbeddingBatch int
	EmbeddingRPS   float64

	// LLM binding.
	LLMBinding  string
	LLMModel    string
	LLMHost     string
	LLMAPIKey   string
	VisionModel string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// Embedding binding.
	EmbeddingBinding string
	EmbeddingModel   string
	EmbeddingDim     int
	EmbeddingHost    string
	EmbeddingAPIKey  string

	// Logging.
	LogLevel string
	Verbose  bool

	// MinerU model cache passthrough. These are exported into the parser
	// subprocess so model weights land on the mounted cache volume.
	ModelCacheDir   string
	ModelScopeCache string
}

// LoadConfig reads the environment into a Config and prepares the working
// directories. It fails when a required value is missing or malformed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Host:        envString("HOST", "0.0.0.0"),
		Port:        envInt("PORT", 8000),
		Workers:     envInt("WORKERS", 1),
		CORSOrigins: envList("CORS_ORIGINS", "*"),

		TokenExpireHours: envInt("TOKEN_EXPIRE_HOURS", 48),

		InputDir:   envString("INPUT_DIR", "./uploads"),
		OutputDir:  envString("OUTPUT_DIR", "./output"),
		WorkingDir: envString("WORKING_DIR", "./rag_storage"),
		LogDir:     envString("LOG_DIR", "./logs"),

		Parser:             envString("PARSER", "mineru"),
		ParseMethod:        envString("PARSE_METHOD", "auto"),
		ChunkTokens:        envInt("CHUNK_SIZE", 1200),
		ChunkOverlap:       envInt("CHUNK_OVERLAP_SIZE", 100),
		DisplayStats:       envBool("DISPLAY_CONTENT_STATS", true),
		EnableImages:       envBool("ENABLE_IMAGE_PROCESSING", true),
		EnableTables:       envBool("ENABLE_TABLE_PROCESSING", true),
		EnableEquations:    envBool("ENABLE_EQUATION_PROCESSING", true),
		MaxConcurrentFiles: envInt("MAX_CONCURRENT_FILES", 1),

		TopK:             envInt("TOP_K", 10),
		ContextWindow:    envInt("CONTEXT_WINDOW", 1),
		ContextMode:      envString("CONTEXT_MODE", "page"),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 2000),

		MaxAsync:       envInt("MAX_ASYNC", 4),
		EmbeddingBatch: envInt("EMBEDDING_BATCH_NUM", 32),
		EmbeddingRPS:   envFloat("EMBEDDING_RPS", 0),

		LLMBinding:  envString("LLM_BINDING", "openai"),
		LLMModel:    envString("LLM_MODEL", "gpt-4o-mini"),
		LLMHost:     envString("LLM_BINDING_HOST", "https://api.openai.com/v1"),
		VisionModel: envString("VISION_MODEL", "gpt-4o"),
		Temperature: envFloat("TEMPERATURE", 0),
		MaxTokens:   envInt("MAX_TOKENS", 32768),
		Timeout:     time.Duration(envInt("TIMEOUT", 240)) * time.Second,

		EmbeddingBinding: envString("EMBEDDING_BINDING", "openai"),
		EmbeddingModel:   envString("EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingDim:     envInt("EMBEDDING_DIM", 3072),
		EmbeddingHost:    envString("EMBEDDING_BINDING_HOST", "https://api.openai.com/v1"),

		LogLevel: envString("LOG_LEVEL", "INFO"),
		Verbose:  envBool("VERBOSE", false),

		ModelCacheDir:   envString("MODEL_CACHE_DIR", ""),
		ModelScopeCache: envString("MODELSCOPE_CACHE", ""),
	}

	// The LLM key falls back to the plain OpenAI variable, and the embedding
	// key falls back to the LLM key.
	cfg.LLMAPIKey = envString("LLM_BINDING_API_KEY", os.Getenv("OPENAI_API_KEY"))
	cfg.EmbeddingAPIKey = envString("EMBEDDING_BINDING_API_KEY", cfg.LLMAPIKey)

	accounts, err := parseAccounts(envList("AUTH_ACCOUNTS", ""))
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts

	if cfg.LLMBinding != "openai" {
		return nil, fmt.Errorf("LLM binding %v not supported in simple API", cfg.LLMBinding)
	}
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_BINDING_API_KEY or OPENAI_API_KEY environment variable is required")
	}
	if cfg.MaxConcurrentFiles < 1 {
		cfg.MaxConcurrentFiles = 1
	}
	if cfg.MaxAsync < 1 {
		cfg.MaxAsync = 1
	}
	if cfg.EmbeddingBatch < 1 {
		cfg.EmbeddingBatch = 1
	}
	if cfg.Verbose {
		cfg.LogLevel = "DEBUG"
	}

	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.WorkingDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %v: %w", dir, err)
		}
	}

	return cfg, nil
}

// AuthEnabled reports whether the endpoints require an access token.
func (c *Config) AuthEnabled() bool {
	return len(c.Accounts) > 0
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%v:%v", c.Host, c.Port)
}

// parseAccounts splits "user:pass" pairs from AUTH_ACCOUNTS.
func parseAccounts(pairs []string) (map[string]string, error) {
	accounts := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, password, found := strings.Cut(pair, ":")
		if !found || name == "" {
			return nil, fmt.Errorf("malformed AUTH_ACCOUNTS entry %q, want user:password", pair)
		}
		accounts[name] = password
	}

	return accounts, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}

	items := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
