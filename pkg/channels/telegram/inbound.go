package telegram

import (
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aiml096/farmer-bot/pkg/bus"
)

// toInbound converts a Telegram message into a bus message. Messages with
// no sender (channel posts) are skipped.
func toInbound(m *telego.Message) (bus.InboundMessage, bool) {
	if m == nil || m.From == nil {
		return bus.InboundMessage{}, false
	}

	msg := bus.InboundMessage{
		Channel:    ChannelName,
		SenderID:   m.From.ID,
		ChatID:     m.Chat.ID,
		MessageID:  m.MessageID,
		ReceivedAt: time.Unix(m.Date, 0),
	}

	switch {
	case m.Voice != nil:
		msg.Kind = bus.KindVoice
		msg.Voice = &bus.VoiceRef{
			FileID:   m.Voice.FileID,
			MIMEType: m.Voice.MimeType,
			Duration: m.Voice.Duration,
			FileSize: m.Voice.FileSize,
		}
	case strings.TrimSpace(m.Text) != "":
		msg.Content = m.Text
		if name, ok := parseCommand(m.Text); ok {
			msg.Kind = bus.KindCommand
			msg.Command = name
		} else {
			msg.Kind = bus.KindText
		}
	default:
		msg.Kind = bus.KindUnsupported
	}
	return msg, true
}

// parseCommand extracts the lower-cased command name from "/name@bot args".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "\n")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}
