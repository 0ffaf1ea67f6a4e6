package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/turn"
	"github.com/aiml096/farmer-bot/pkg/utils"
)

const (
	telegramMaxMessageLength = 4096
	telegramSplitTarget      = 3900
)

// SendText delivers text, split into several messages when it exceeds
// Telegram's length limit. Markdown from the model is rendered as HTML,
// falling back to plain text when Telegram rejects the markup.
func (c *TelegramChannel) SendText(ctx context.Context, chatID int64, text string) error {
	chunks := utils.SplitText(text, telegramSplitTarget)
	for i, chunk := range chunks {
		if err := c.sendMessageChunk(ctx, chatID, chunk); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (c *TelegramChannel) sendMessageChunk(ctx context.Context, chatID int64, content string) error {
	htmlContent := markdownToTelegramHTML(content)
	if runeLen(htmlContent) <= telegramMaxMessageLength {
		tgMsg := tu.Message(tu.ID(chatID), htmlContent)
		tgMsg.ParseMode = telego.ModeHTML
		_, err := c.bot.SendMessage(ctx, tgMsg)
		if err == nil {
			return nil
		}
		logger.WarnCF("telegram", "HTML parse failed, falling back to plain text", map[string]any{
			"error": err.Error(),
		})
	}

	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), content))
	return err
}

// SendAudio uploads audio as a music file with the given name.
func (c *TelegramChannel) SendAudio(ctx context.Context, chatID int64, audio []byte, fileName string) error {
	if len(audio) == 0 {
		return fmt.Errorf("empty audio")
	}
	params := tu.Audio(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(audio), fileName)))
	if _, err := c.bot.SendAudio(ctx, params); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	logger.DebugCF("telegram", "Audio reply sent", map[string]any{
		"chat_id":    chatID,
		"size_bytes": len(audio),
	})
	return nil
}

func (c *TelegramChannel) SendAction(ctx context.Context, chatID int64, action turn.Action) error {
	var tgAction string
	switch action {
	case turn.ActionRecordVoice:
		tgAction = telego.ChatActionRecordVoice
	default:
		tgAction = telego.ChatActionTyping
	}
	return c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), tgAction))
}

// FetchVoice resolves the voice note's file path and downloads it.
func (c *TelegramChannel) FetchVoice(ctx context.Context, ref bus.VoiceRef) ([]byte, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: ref.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("file %s has no download path", ref.FileID)
	}

	return utils.DownloadBytes(ctx, c.bot.FileDownloadURL(file.FilePath), utils.DownloadOptions{
		HTTPClient:   c.httpClient,
		LoggerPrefix: "telegram",
	})
}

var (
	_ turn.Replier      = (*TelegramChannel)(nil)
	_ turn.VoiceFetcher = (*TelegramChannel)(nil)
)
