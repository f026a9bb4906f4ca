// Package config loads process configuration once at startup. Nothing below
// cmd/ reads the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendDynamoDB = "dynamodb"
	BackendMem0     = "mem0"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	LogLevel  string
	LogFormat string

	ClassifierMode    string
	MaxMessageLength  int
	GenerationTimeout time.Duration

	LLMProvider   string
	Temperature   float32
	OpenAIModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiModel   string
	GeminiAPIKey  string

	MemoryBackend     string
	MemorySearchLimit int
	StateTable        string
	Mem0BaseURL       string
	Mem0APIKey        string
	RedisURL          string

	// ParamPrefix enables SSM lookups for any credential left empty.
	ParamPrefix string
	APIKey      string

	HTTPAddr      string
	TelegramToken string
}

// Load reads the given dotenv files (or an optional .env when none are
// given), then the process environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("config: load env files: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CLASSIFIER_MODE", "cautious")
	v.SetDefault("MAX_MESSAGE_LENGTH", 4000)
	v.SetDefault("GENERATION_TIMEOUT", "25s")
	v.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	v.SetDefault("LLM_TEMPERATURE", 0.7)
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("MEMORY_BACKEND", BackendDynamoDB)
	v.SetDefault("MEMORY_SEARCH_LIMIT", 50)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.AutomaticEnv()

	cfg := &Config{
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:         strings.ToLower(v.GetString("LOG_FORMAT")),
		ClassifierMode:    strings.ToLower(strings.TrimSpace(v.GetString("CLASSIFIER_MODE"))),
		MaxMessageLength:  v.GetInt("MAX_MESSAGE_LENGTH"),
		GenerationTimeout: v.GetDuration("GENERATION_TIMEOUT"),
		LLMProvider:       strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		Temperature:       float32(v.GetFloat64("LLM_TEMPERATURE")),
		OpenAIModel:       v.GetString("OPENAI_MODEL"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		GeminiModel:       v.GetString("GEMINI_MODEL"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		MemoryBackend:     strings.ToLower(strings.TrimSpace(v.GetString("MEMORY_BACKEND"))),
		MemorySearchLimit: v.GetInt("MEMORY_SEARCH_LIMIT"),
		StateTable:        v.GetString("STATE_TABLE"),
		Mem0BaseURL:       v.GetString("MEM0_BASE_URL"),
		Mem0APIKey:        v.GetString("MEM0_API_KEY"),
		RedisURL:          v.GetString("REDIS_URL"),
		ParamPrefix:       strings.TrimRight(strings.TrimSpace(v.GetString("PARAM_PREFIX")), "/"),
		APIKey:            v.GetString("HONEYPOT_API_KEY"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		TelegramToken:     v.GetString("TELEGRAM_TOKEN"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	var errs []error
	switch c.ClassifierMode {
	case "cautious", "keyword":
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_MODE %q is not one of cautious, keyword", c.ClassifierMode))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.ParamPrefix == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY or PARAM_PREFIX is required for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" && c.ParamPrefix == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY or PARAM_PREFIX is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not one of openai, gemini", c.LLMProvider))
	}

	switch c.MemoryBackend {
	case BackendDynamoDB:
		if c.StateTable == "" {
			errs = append(errs, errors.New("STATE_TABLE is required for the dynamodb memory backend"))
		}
	case BackendMem0:
		if c.Mem0APIKey == "" && c.ParamPrefix == "" {
			errs = append(errs, errors.New("MEM0_API_KEY or PARAM_PREFIX is required for the mem0 memory backend"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis memory backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("MEMORY_BACKEND %q is not one of dynamodb, mem0, redis, memory", c.MemoryBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.ParamPrefix != "" || c.MemoryBackend == BackendDynamoDB
}
