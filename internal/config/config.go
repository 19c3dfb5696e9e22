package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/llm"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/splitter"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-3.5-turbo)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Translation Configuration:
// - SRC_LANG: Source language code, "auto" enables detection (default: auto)
// - DST_LANG: Target language code (default: en)
// - MAX_TOKEN: Per-request token budget for segment payloads (default: 768)
// - SPLIT_TOKEN_LIMIT: Token budget for splitting long units (default: 256)
// - MAX_RETRIES: Retry rounds over failed units (default: 4)
// - THREAD_COUNT: Concurrent segment workers (default: 4)
// - CONTINUE_MODE: Resume from existing working files (default: false)
// - ECHO_FIRST_ATTEMPT_PASS: Surface first-attempt echoes (default: true)
// - GLOSSARY_PATH: CSV glossary file (optional)
//
// Directory Configuration:
// - TEMP_DIR: Working file directory (default: temp)
// - RESULT_DIR: Output directory (default: result)
// - HISTORY_DB: SQLite history database path (default: log/history.db)
//
// Watch Configuration:
// - WATCH_DIR: Directory scanned for new source files (optional)
// - CRON_EXPR: Scan schedule (default: 0 0 * * *)
type Config struct {
	LLM       llm.Config      `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Dirs      DirConfig       `json:"dirs"`
	Watch     WatchConfig     `json:"watch"`
}

// TranslateConfig holds the translation pipeline configuration
type TranslateConfig struct {
	SrcLang              string `json:"src_lang"`
	DstLang              string `json:"dst_lang"`
	MaxToken             int    `json:"max_token"`
	SplitTokenLimit      int    `json:"split_token_limit"`
	MaxRetries           int    `json:"max_retries"`
	ThreadCount          int    `json:"thread_count"`
	ContinueMode         bool   `json:"continue_mode"`
	EchoFirstAttemptPass bool   `json:"echo_first_attempt_pass"`
	GlossaryPath         string `json:"glossary_path"`
}

// DirConfig holds working and output directories
type DirConfig struct {
	TempDir   string `json:"temp_dir"`
	ResultDir string `json:"result_dir"`
	HistoryDB string `json:"history_db"`
}

// WatchConfig holds the directory-watch configuration
type WatchConfig struct {
	WatchDir string `json:"watch_dir"`
	CronExpr string `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: llm.Config{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Translate: TranslateConfig{
			SrcLang:              getEnvString("SRC_LANG", "auto"),
			DstLang:              getEnvString("DST_LANG", "en"),
			MaxToken:             getEnvInt("MAX_TOKEN", 768),
			SplitTokenLimit:      getEnvInt("SPLIT_TOKEN_LIMIT", splitter.DefaultSplitTokens),
			MaxRetries:           getEnvInt("MAX_RETRIES", 4),
			ThreadCount:          getEnvInt("THREAD_COUNT", 4),
			ContinueMode:         getEnvBool("CONTINUE_MODE", false),
			EchoFirstAttemptPass: getEnvBool("ECHO_FIRST_ATTEMPT_PASS", true),
			GlossaryPath:         getEnvString("GLOSSARY_PATH", ""),
		},
		Dirs: DirConfig{
			TempDir:   getEnvString("TEMP_DIR", "temp"),
			ResultDir: getEnvString("RESULT_DIR", "result"),
			HistoryDB: getEnvString("HISTORY_DB", "log/history.db"),
		},
		Watch: WatchConfig{
			WatchDir: getEnvString("WATCH_DIR", ""),
			CronExpr: getEnvString("CRON_EXPR", "0 0 * * *"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Translate.DstLang == "" {
		return fmt.Errorf("DST_LANG is required")
	}
	if c.Translate.MaxToken < 1 {
		return fmt.Errorf("MAX_TOKEN must be greater than 0")
	}
	if c.Translate.ThreadCount < 1 {
		return fmt.Errorf("THREAD_COUNT must be greater than 0")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
