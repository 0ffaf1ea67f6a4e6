package config

// DefaultConfig returns the configuration the bot runs with when neither a
// config file nor environment overrides are present. Secrets stay empty.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.1-8b-instant",
		},
		Transcriber: TranscriberConfig{
			Model: "whisper-large-v3",
		},
		TTS: TTSConfig{
			Provider: TTSProviderGoogle,
			Language: "ml",
			Model:    "kokoro",
		},
		Conversation: ConversationConfig{
			RegionalLanguage:   "Malayalam",
			WindowSize:         5,
			MaxMessagesPerUser: 0,
		},
		Workers: WorkersConfig{
			PoolSize: 4,
		},
		Retry: RetryConfig{
			Attempts:              3,
			AttemptTimeoutSeconds: 60,
			BackoffMillis:         1500,
			MaxElapsedSeconds:     180,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Redact: true,
		},
		Observability: ObservabilityConfig{
			SampleRatio: 1,
			ServiceName: "farmer-bot",
		},
	}
}
