package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ErrMissingSecret is returned by Validate when a required credential is absent.
var ErrMissingSecret = errors.New("missing required secret")

type Config struct {
	Telegram      TelegramConfig      `json:"telegram"`
	LLM           LLMConfig           `json:"llm"`
	Transcriber   TranscriberConfig   `json:"transcriber"`
	TTS           TTSConfig           `json:"tts"`
	Conversation  ConversationConfig  `json:"conversation"`
	Workers       WorkersConfig       `json:"workers"`
	Retry         RetryConfig         `json:"retry"`
	Logging       LoggingConfig       `json:"logging"`
	Observability ObservabilityConfig `json:"observability"`
}

type TelegramConfig struct {
	// Token keeps the variable name the bot has always been deployed with.
	Token       string `json:"token" env:"TELEGRAM_BOT_TOKEN"`
	Proxy       string `json:"proxy" env:"FARMERBOT_TELEGRAM_PROXY"`
	PollTimeout int    `json:"poll_timeout" env:"FARMERBOT_TELEGRAM_POLL_TIMEOUT"` // seconds
}

type LLMConfig struct {
	APIKey    string `json:"api_key" env:"GROQ_API_KEY"`
	BaseURL   string `json:"base_url" env:"FARMERBOT_LLM_BASE_URL"`
	Model     string `json:"model" env:"FARMERBOT_LLM_MODEL"`
	MaxTokens int    `json:"max_tokens" env:"FARMERBOT_LLM_MAX_TOKENS"`
	// Temperature is sent only when set; nil leaves the API default.
	Temperature *float64 `json:"temperature,omitempty" env:"FARMERBOT_LLM_TEMPERATURE"`
}

type TranscriberConfig struct {
	// APIKey defaults to the LLM key; Groq serves both endpoints.
	APIKey  string `json:"api_key" env:"FARMERBOT_TRANSCRIBER_API_KEY"`
	BaseURL string `json:"base_url" env:"FARMERBOT_TRANSCRIBER_BASE_URL"`
	Model   string `json:"model" env:"FARMERBOT_TRANSCRIBER_MODEL"`
}

const (
	TTSProviderGoogle = "google"
	TTSProviderOpenAI = "openai"
)

type TTSConfig struct {
	Provider string `json:"provider" env:"FARMERBOT_TTS_PROVIDER"`
	Language string `json:"language" env:"FARMERBOT_TTS_LANGUAGE"`
	BaseURL  string `json:"base_url" env:"FARMERBOT_TTS_BASE_URL"`
	APIKey   string `json:"api_key" env:"FARMERBOT_TTS_API_KEY"`
	Model    string `json:"model" env:"FARMERBOT_TTS_MODEL"`
	Voice    string `json:"voice" env:"FARMERBOT_TTS_VOICE"`
}

type ConversationConfig struct {
	RegionalLanguage   string `json:"regional_language" env:"FARMERBOT_REGIONAL_LANGUAGE"`
	WindowSize         int    `json:"window_size" env:"FARMERBOT_WINDOW_SIZE"`
	MaxMessagesPerUser int    `json:"max_messages_per_user" env:"FARMERBOT_MAX_MESSAGES_PER_USER"` // 0 = unbounded
}

type WorkersConfig struct {
	PoolSize int `json:"pool_size" env:"FARMERBOT_WORKERS"`
}

type RetryConfig struct {
	Attempts              int `json:"attempts" env:"FARMERBOT_RETRY_ATTEMPTS"`
	AttemptTimeoutSeconds int `json:"attempt_timeout_seconds" env:"FARMERBOT_RETRY_ATTEMPT_TIMEOUT"`
	BackoffMillis         int `json:"backoff_millis" env:"FARMERBOT_RETRY_BACKOFF_MS"`
	MaxElapsedSeconds     int `json:"max_elapsed_seconds" env:"FARMERBOT_RETRY_MAX_ELAPSED"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"FARMERBOT_LOG_LEVEL"`
	File   string `json:"file" env:"FARMERBOT_LOG_FILE"`
	Redact bool   `json:"redact" env:"FARMERBOT_LOG_REDACT"`
	// RedactPatterns are extra regular expressions masked in log output.
	RedactPatterns []string `json:"redact_patterns" env:"FARMERBOT_LOG_REDACT_PATTERNS" envSeparator:","`
}

type ObservabilityConfig struct {
	Enabled      bool    `json:"enabled" env:"FARMERBOT_OTEL_ENABLED"`
	OTLPEndpoint string  `json:"otlp_endpoint" env:"FARMERBOT_OTEL_ENDPOINT"`
	Insecure     bool    `json:"insecure" env:"FARMERBOT_OTEL_INSECURE"`
	SampleRatio  float64 `json:"sample_ratio" env:"FARMERBOT_OTEL_SAMPLE_RATIO"`
	ServiceName  string  `json:"service_name" env:"FARMERBOT_OTEL_SERVICE_NAME"`
}

// LoadConfig reads path (a missing file is not an error), then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimRight(c.LLM.BaseURL, "/")
	c.Transcriber.BaseURL = strings.TrimRight(c.Transcriber.BaseURL, "/")
	c.TTS.BaseURL = strings.TrimRight(c.TTS.BaseURL, "/")
	c.TTS.Provider = strings.ToLower(strings.TrimSpace(c.TTS.Provider))

	if c.Transcriber.APIKey == "" {
		c.Transcriber.APIKey = c.LLM.APIKey
	}
	if c.Transcriber.BaseURL == "" {
		c.Transcriber.BaseURL = c.LLM.BaseURL
	}
}

// Validate reports configuration that must stop the process at boot.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("%w: telegram bot token (TELEGRAM_BOT_TOKEN)", ErrMissingSecret))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("%w: chat service API key (GROQ_API_KEY)", ErrMissingSecret))
	}
	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		errs = append(errs, errors.New("llm base_url and model must be set"))
	}
	if c.Conversation.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("conversation window_size must be positive, got %d", c.Conversation.WindowSize))
	}
	if c.Conversation.MaxMessagesPerUser < 0 {
		errs = append(errs, fmt.Errorf("conversation max_messages_per_user must not be negative, got %d", c.Conversation.MaxMessagesPerUser))
	}
	if c.Workers.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("workers pool_size must be positive, got %d", c.Workers.PoolSize))
	}
	if c.Retry.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("retry attempts must be positive, got %d", c.Retry.Attempts))
	}

	switch c.TTS.Provider {
	case TTSProviderGoogle:
	case TTSProviderOpenAI:
		if c.TTS.BaseURL == "" {
			errs = append(errs, errors.New("tts base_url is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tts provider %q", c.TTS.Provider))
	}

	for _, pattern := range c.Logging.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("logging redact_patterns: %w", err))
		}
	}

	if c.Observability.Enabled && c.Observability.OTLPEndpoint == "" {
		errs = append(errs, errors.New("observability otlp_endpoint is required when enabled"))
	}

	return errors.Join(errs...)
}
