package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiml096/farmer-bot/internal/infra"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Telegram.Token = "123456:token"
	cfg.LLM.APIKey = "gsk_test"
	cfg.normalize()
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "whisper-large-v3", cfg.Transcriber.Model)
	assert.Equal(t, "ml", cfg.TTS.Language)
	assert.Equal(t, TTSProviderGoogle, cfg.TTS.Provider)
	assert.Equal(t, 5, cfg.Conversation.WindowSize)
	assert.Zero(t, cfg.Conversation.MaxMessagesPerUser)
	assert.Empty(t, cfg.Telegram.Token)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Nil(t, cfg.LLM.Temperature, "temperature is left to the API unless configured")
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"telegram": {"token": "from-file"},
		"llm": {"api_key": "file-key", "model": "file-model", "base_url": "https://llm.example.com/v1/"},
		"conversation": {"window_size": 7}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("FARMERBOT_TRANSCRIBER_API_KEY", "")
	t.Setenv("FARMERBOT_TRANSCRIBER_BASE_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("FARMERBOT_LLM_MODEL", "env-model")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://llm.example.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 7, cfg.Conversation.WindowSize)

	// The transcriber shares the chat credentials unless configured separately.
	assert.Equal(t, "file-key", cfg.Transcriber.APIKey)
	assert.Equal(t, "https://llm.example.com/v1", cfg.Transcriber.BaseURL)
}

func TestLoadConfig_Temperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm": {"temperature": 0.3}}`), 0o600))
	t.Setenv("FARMERBOT_LLM_TEMPERATURE", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.3, *cfg.LLM.Temperature)

	t.Setenv("FARMERBOT_LLM_TEMPERATURE", "0")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Conversation.WindowSize)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		wantErr       bool
		wantMissingID bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }, wantErr: true, wantMissingID: true},
		{name: "missing api key", mutate: func(c *Config) { c.LLM.APIKey = "" }, wantErr: true, wantMissingID: true},
		{name: "zero window", mutate: func(c *Config) { c.Conversation.WindowSize = 0 }, wantErr: true},
		{name: "negative cap", mutate: func(c *Config) { c.Conversation.MaxMessagesPerUser = -1 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Workers.PoolSize = 0 }, wantErr: true},
		{name: "unknown tts", mutate: func(c *Config) { c.TTS.Provider = "festival" }, wantErr: true},
		{name: "openai tts without url", mutate: func(c *Config) { c.TTS.Provider = TTSProviderOpenAI }, wantErr: true},
		{
			name: "openai tts with url",
			mutate: func(c *Config) {
				c.TTS.Provider = TTSProviderOpenAI
				c.TTS.BaseURL = "http://localhost:8102"
			},
		},
		{name: "otel without endpoint", mutate: func(c *Config) { c.Observability.Enabled = true }, wantErr: true},
		{name: "redact pattern", mutate: func(c *Config) { c.Logging.RedactPatterns = []string{`farm-\d+`} }},
		{name: "bad redact pattern", mutate: func(c *Config) { c.Logging.RedactPatterns = []string{"(unclosed"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMissingID, errors.Is(err, ErrMissingSecret))
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(infra.EnvHome, "/srv/farmerbot")

	assert.Equal(t, "/etc/bot.json", ResolveConfigPath("/etc/bot.json"))
	assert.Equal(t, filepath.Join("/srv/farmerbot", "config.json"), ResolveConfigPath(""))

	t.Setenv(EnvConfigPath, "/opt/bot/config.json")
	assert.Equal(t, "/opt/bot/config.json", ResolveConfigPath(""))
}
