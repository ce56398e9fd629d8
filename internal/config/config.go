package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port       int              `json:"port"`
	JWTSecret  string           `json:"jwt_secret"`
	CORSOrigin []string         `json:"cors_origin"`
	LogConfig  logger.LogConfig `json:"log_config"`
	Database   DatabaseConfig   `json:"database"`
	AI         AIConfig         `json:"ai"`
	Chat       ChatConfig       `json:"chat"`
	Indexer    IndexerConfig    `json:"indexer"`
	Commerce   bool             `json:"commerce_enabled"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type ProviderConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url,omitempty"`
	EmbedModel string `json:"embed_model"`
	ChatModel  string `json:"chat_model"`
}

type AIConfig struct {
	OpenAI            ProviderConfig `json:"openai"`
	Gemini            ProviderConfig `json:"gemini"`
	TimeoutSeconds    int            `json:"timeout_seconds"`
	EmbedCacheSize    int            `json:"embed_cache_size"`
	EmbedCacheTTLMins int            `json:"embed_cache_ttl_mins"`
}

type ChatConfig struct {
	MaxMessageChars  int     `json:"max_message_chars"`
	ResultLimit      int     `json:"result_limit"`
	MinSimilarity    float64 `json:"min_similarity"`
	PageBoost        float64 `json:"page_boost"`
	MaxContextChars  int     `json:"max_context_chars"`
	SessionTTLMins   int     `json:"session_ttl_mins"`
	SessionCacheSize int     `json:"session_cache_size"`
	RatePerMinute    int     `json:"rate_per_minute"`
	RateBurst        int     `json:"rate_burst"`
	RateBurstSeconds int     `json:"rate_burst_seconds"`
}

type IndexerConfig struct {
	ChunkChars    int      `json:"chunk_chars"`
	PageSize      int      `json:"page_size"`
	MaxDocChunks  int      `json:"max_doc_chunks"`
	QueryRowLimit int      `json:"query_row_limit"`
	CustomQueries []string `json:"custom_queries"`
	ReindexCron   string   `json:"reindex_cron"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	applyAIDefaults(&cfg.AI)
	applyChatDefaults(&cfg.Chat)
	applyIndexerDefaults(&cfg.Indexer)
	return &cfg, nil
}

func applyAIDefaults(cfg *AIConfig) {
	if cfg.OpenAI.EmbedModel == "" {
		cfg.OpenAI.EmbedModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.Gemini.EmbedModel == "" {
		cfg.Gemini.EmbedModel = "text-embedding-004"
	}
	if cfg.Gemini.ChatModel == "" {
		cfg.Gemini.ChatModel = "gemini-2.0-flash"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.EmbedCacheSize <= 0 {
		cfg.EmbedCacheSize = 2048
	}
	if cfg.EmbedCacheTTLMins <= 0 {
		cfg.EmbedCacheTTLMins = 120
	}
}

func applyChatDefaults(cfg *ChatConfig) {
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = 1000
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 5
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = 0.15
	}
	if cfg.PageBoost <= 0 {
		cfg.PageBoost = 1.2
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 6000
	}
	if cfg.SessionTTLMins <= 0 {
		cfg.SessionTTLMins = 30
	}
	if cfg.SessionCacheSize <= 0 {
		cfg.SessionCacheSize = 10000
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 3
	}
	if cfg.RateBurstSeconds <= 0 {
		cfg.RateBurstSeconds = 10
	}
}

func applyIndexerDefaults(cfg *IndexerConfig) {
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = 500
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.QueryRowLimit <= 0 {
		cfg.QueryRowLimit = 50
	}
	if cfg.ReindexCron == "" {
		cfg.ReindexCron = "0 3 * * *"
	}
}
