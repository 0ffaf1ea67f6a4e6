package telegram

import (
	"context"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aiml096/farmer-bot/pkg/logger"
)

var botCommands = []telego.BotCommand{
	{Command: "start", Description: "Start the farming assistant"},
	{Command: "reset", Description: "Forget this conversation"},
}

var commandRegistrationBackoff = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	10 * time.Minute,
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (c *TelegramChannel) RegisterCommands(ctx context.Context, cmds []telego.BotCommand) error {
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: cmds,
	})
}

func (c *TelegramChannel) startCommandRegistration(ctx context.Context, cmds []telego.BotCommand) {
	if len(cmds) == 0 {
		return
	}

	register := c.registerFunc
	if register == nil {
		register = c.RegisterCommands
	}

	regCtx, cancel := context.WithCancel(ctx)
	c.commandRegCancel = cancel

	go func() {
		attempt := 0
		for {
			err := register(regCtx, cmds)
			if err == nil {
				logger.InfoCF("telegram", "Telegram commands registered", map[string]any{
					"count": len(cmds),
				})
				return
			}

			delay := commandRegistrationBackoff[min(attempt, len(commandRegistrationBackoff)-1)]
			logger.WarnCF("telegram", "Telegram command registration failed; will retry", map[string]any{
				"error":       err.Error(),
				"retry_after": delay.String(),
			})
			attempt++

			select {
			case <-regCtx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}
