// Package telegram connects the bot to the Telegram Bot API: long polling
// feeds the inbound bus, and the channel delivers text, audio and chat
// actions for the turn orchestrator.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/config"
	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/utils"
)

const ChannelName = "telegram"

type TelegramChannel struct {
	bot     *telego.Bot
	config  config.TelegramConfig
	bus     *bus.MessageBus
	running atomic.Bool

	httpClient       *http.Client
	registerFunc     func(context.Context, []telego.BotCommand) error
	commandRegCancel context.CancelFunc
	pollCancel       context.CancelFunc
	done             chan struct{}
}

// Option customizes channel construction.
type Option func(*channelOptions)

type channelOptions struct {
	apiServer string
}

// WithAPIServer points the bot at a different Bot API server.
func WithAPIServer(server string) Option {
	return func(o *channelOptions) { o.apiServer = server }
}

func NewTelegramChannel(cfg config.TelegramConfig, mb *bus.MessageBus, opts ...Option) (*TelegramChannel, error) {
	var o channelOptions
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.PollTimeout+30) * time.Second}
	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	botOpts := []telego.BotOption{telego.WithHTTPClient(httpClient)}
	if o.apiServer != "" {
		botOpts = append(botOpts, telego.WithAPIServer(o.apiServer))
	}

	bot, err := telego.NewBot(cfg.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		bot:        bot,
		config:     cfg,
		bus:        mb,
		httpClient: httpClient,
	}, nil
}

func (c *TelegramChannel) Name() string { return ChannelName }

func (c *TelegramChannel) IsRunning() bool { return c.running.Load() }

// Start begins long polling. Updates are published to the bus until ctx is
// done or Stop is called.
func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	pollCtx, cancel := context.WithCancel(ctx)
	timeout := c.config.PollTimeout
	if timeout <= 0 {
		timeout = 30
	}

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        timeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	c.pollCancel = cancel
	c.done = make(chan struct{})
	c.running.Store(true)

	if me, err := c.bot.GetMe(pollCtx); err == nil {
		logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
			"username": me.Username,
		})
	}

	c.startCommandRegistration(pollCtx, botCommands)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop ends polling and waits for the update loop to exit.
func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot...")
	c.running.Store(false)
	if c.commandRegCancel != nil {
		c.commandRegCancel()
	}
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.done == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message *telego.Message) {
	msg, ok := toInbound(message)
	if !ok {
		return
	}

	logger.DebugCF("telegram", "Received message", map[string]any{
		"sender_id": msg.SenderID,
		"chat_id":   msg.ChatID,
		"kind":      string(msg.Kind),
		"preview":   utils.Truncate(msg.Content, 50),
	})

	if err := c.bus.PublishInbound(ctx, msg); err != nil {
		logger.WarnCF("telegram", "Dropped inbound message", map[string]any{
			"sender_id": msg.SenderID,
			"error":     err.Error(),
		})
	}
}
