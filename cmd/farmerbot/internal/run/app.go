package run

import (
	"context"
	"fmt"
	"time"

	"github.com/aiml096/farmer-bot/cmd/farmerbot/internal"
	"github.com/aiml096/farmer-bot/pkg/audio"
	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/channels/telegram"
	"github.com/aiml096/farmer-bot/pkg/config"
	"github.com/aiml096/farmer-bot/pkg/history"
	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/observability"
	"github.com/aiml096/farmer-bot/pkg/prompt"
	"github.com/aiml096/farmer-bot/pkg/providers"
	"github.com/aiml096/farmer-bot/pkg/redaction"
	"github.com/aiml096/farmer-bot/pkg/turn"
	"github.com/aiml096/farmer-bot/pkg/utils"
	"github.com/aiml096/farmer-bot/pkg/voice"
	"github.com/aiml096/farmer-bot/pkg/workers"
)

const shutdownTimeout = 30 * time.Second

type app struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	channel    *telegram.TelegramChannel
	dispatcher *turn.Dispatcher
	store      *history.Store
}

func runBot(ctx context.Context, configPath string, debug bool) error {
	cfg, path, err := internal.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := configureLogging(cfg.Logging, debug); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		logger.ErrorCF("farmerbot", "Invalid configuration", map[string]any{
			"config": path,
			"error":  err.Error(),
		})
		return fmt.Errorf("invalid configuration: %w", err)
	}

	shutdownTracing, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WarnCF("otel", "Tracer shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	logger.InfoCF("farmerbot", "Starting farmerbot", map[string]any{
		"version":      internal.FormatVersion(),
		"config":       path,
		"chat_model":   cfg.LLM.Model,
		"stt_model":    cfg.Transcriber.Model,
		"tts_provider": cfg.TTS.Provider,
		"workers":      cfg.Workers.PoolSize,
	})
	return a.run(ctx)
}

func configureLogging(cfg config.LoggingConfig, debug bool) error {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	logger.SetRedactionEnabled(cfg.Redact)
	logger.ConfigureRedaction(redactionConfig(cfg))
	if cfg.File != "" {
		if err := logger.EnableFileLogging(cfg.File); err != nil {
			return fmt.Errorf("enable file logging: %w", err)
		}
	}
	return nil
}

func redactionConfig(cfg config.LoggingConfig) redaction.Config {
	rc := redaction.DefaultConfig()
	rc.Enabled = cfg.Redact
	rc.CustomPatterns = cfg.RedactPatterns
	return rc
}

// newApp wires every component. Nothing here touches the network.
func newApp(cfg *config.Config) (*app, error) {
	for _, secret := range []string{cfg.Telegram.Token, cfg.LLM.APIKey, cfg.Transcriber.APIKey, cfg.TTS.APIKey} {
		if secret != "" {
			redaction.AddSecret(secret)
		}
	}

	mb := bus.NewMessageBus()
	channel, err := telegram.NewTelegramChannel(cfg.Telegram, mb)
	if err != nil {
		return nil, err
	}

	store := history.NewStore(cfg.Conversation.MaxMessagesPerUser)
	chat := providers.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Telegram.Proxy, chatOptions(cfg.LLM)...)

	orch, err := turn.New(turn.Deps{
		Store:       store,
		Prompts:     prompt.NewBuilder(cfg.Conversation.RegionalLanguage),
		Chat:        chat,
		Transcoder:  audio.NewOpusTranscoder(),
		Transcriber: voice.NewWhisperTranscriber(cfg.Transcriber.APIKey, cfg.Transcriber.BaseURL, cfg.Transcriber.Model),
		Synthesizer: newSynthesizer(cfg.TTS),
		Fetcher:     channel,
		Replier:     channel,
		Pool:        workers.NewPool(cfg.Workers.PoolSize),
	}, turn.Options{
		Window:     cfg.Conversation.WindowSize,
		SpeechLang: cfg.TTS.Language,
		Retry:      retryPolicy(cfg.Retry),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		bus:        mb,
		channel:    channel,
		dispatcher: turn.NewDispatcher(mb, orch, turn.DefaultTurnTimeout),
		store:      store,
	}, nil
}

func chatOptions(cfg config.LLMConfig) []providers.Option {
	opts := []providers.Option{
		providers.WithModel(cfg.Model),
		providers.WithMaxTokens(cfg.MaxTokens),
	}
	if cfg.Temperature != nil {
		opts = append(opts, providers.WithTemperature(*cfg.Temperature))
	}
	return opts
}

func newSynthesizer(cfg config.TTSConfig) voice.Synthesizer {
	if cfg.Provider == config.TTSProviderOpenAI {
		return voice.NewSpeechSynthesizer(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Voice)
	}
	return voice.NewGoogleSynthesizer(cfg.BaseURL)
}

func retryPolicy(cfg config.RetryConfig) utils.RetryPolicy {
	return utils.NewRetryPolicy(
		cfg.Attempts,
		time.Duration(cfg.AttemptTimeoutSeconds)*time.Second,
		time.Duration(cfg.BackoffMillis)*time.Millisecond,
		time.Duration(cfg.MaxElapsedSeconds)*time.Second,
	)
}

// run polls until ctx is done, then drains in-flight turns.
func (a *app) run(ctx context.Context) error {
	if err := a.channel.Start(ctx); err != nil {
		return err
	}

	dispatchDone := make(chan struct{})
	go func() {
		a.dispatcher.Run(ctx)
		close(dispatchDone)
	}()

	fmt.Printf("%s farmerbot is running. Press Ctrl+C to stop.\n", internal.Logo)
	<-ctx.Done()
	logger.InfoC("farmerbot", "Shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.channel.Stop(stopCtx); err != nil {
		logger.WarnCF("farmerbot", "Telegram channel did not stop cleanly", map[string]any{"error": err.Error()})
	}

	select {
	case <-dispatchDone:
	case <-stopCtx.Done():
		logger.WarnC("farmerbot", "Timed out waiting for in-flight turns")
	}
	a.bus.Close()

	logger.InfoCF("farmerbot", "Stopped", map[string]any{"users": a.store.Users()})
	return nil
}
