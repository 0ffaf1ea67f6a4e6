package bus

import "time"

// InboundKind classifies what the user sent.
type InboundKind string

const (
	KindText        InboundKind = "text"
	KindVoice       InboundKind = "voice"
	KindCommand     InboundKind = "command"
	KindUnsupported InboundKind = "unsupported"
)

type InboundMessage struct {
	Channel    string      `json:"channel"`
	SenderID   int64       `json:"sender_id"`
	ChatID     int64       `json:"chat_id"`
	MessageID  int         `json:"message_id"`
	Kind       InboundKind `json:"kind"`
	Content    string      `json:"content"`
	Command    string      `json:"command,omitempty"`
	Voice      *VoiceRef   `json:"voice,omitempty"`
	ReceivedAt time.Time   `json:"received_at"`
}

// VoiceRef points at a voice note held by the messaging platform.
type VoiceRef struct {
	FileID   string `json:"file_id"`
	MIMEType string `json:"mime_type,omitempty"`
	Duration int    `json:"duration,omitempty"` // seconds
	FileSize int64  `json:"file_size,omitempty"`
}
