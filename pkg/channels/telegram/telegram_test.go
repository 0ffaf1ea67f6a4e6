package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/config"
	"github.com/aiml096/farmer-bot/pkg/turn"
)

const testToken = "123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type fakeBotAPI struct {
	mu         sync.Mutex
	texts      []string
	modes      []string
	audio      []string
	actions    []string
	rejectHTML bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/file/bot"+testToken+"/") {
			w.Write([]byte("OggS-voice-bytes"))
			return
		}

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		w.Header().Set("Content-Type", "application/json")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch method {
		case "sendMessage":
			var body struct {
				Text      string `json:"text"`
				ParseMode string `json:"parse_mode"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if f.rejectHTML && body.ParseMode != "" {
				w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
				return
			}
			f.texts = append(f.texts, body.Text)
			f.modes = append(f.modes, body.ParseMode)
			w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		case "sendAudio":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("audio")
			require.NoError(t, err)
			data, _ := io.ReadAll(file)
			f.audio = append(f.audio, header.Filename+":"+string(data))
			w.Write([]byte(`{"ok":true,"result":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"}}}`))
		case "sendChatAction":
			var body struct {
				Action string `json:"action"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.actions = append(f.actions, body.Action)
			w.Write([]byte(`{"ok":true,"result":true}`))
		case "getFile":
			w.Write([]byte(`{"ok":true,"result":{"file_id":"f1","file_unique_id":"u1","file_path":"voice/file_1.oga"}}`))
		default:
			w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}
}

func newTestChannel(t *testing.T, api *fakeBotAPI) *TelegramChannel {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	ch, err := NewTelegramChannel(config.TelegramConfig{Token: testToken}, bus.NewMessageBus(), WithAPIServer(server.URL))
	require.NoError(t, err)
	return ch
}

func TestSendText_SplitsLongReplies(t *testing.T) {
	api := &fakeBotAPI{}
	ch := newTestChannel(t, api)

	reply := strings.Repeat("നെല്ല് കൃഷിക്ക് നല്ല വെള്ളം വേണം. ", 300)
	require.NoError(t, ch.SendText(context.Background(), 42, reply))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Greater(t, len(api.texts), 1)
	for _, text := range api.texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), telegramMaxMessageLength)
	}
	assert.Equal(t, "HTML", api.modes[0])
}

func TestSendText_FallsBackToPlainText(t *testing.T) {
	api := &fakeBotAPI{rejectHTML: true}
	ch := newTestChannel(t, api)

	require.NoError(t, ch.SendText(context.Background(), 42, "**bold** <tag>"))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"**bold** <tag>"}, api.texts)
	assert.Equal(t, []string{""}, api.modes)
}

func TestSendAudioAndAction(t *testing.T) {
	api := &fakeBotAPI{}
	ch := newTestChannel(t, api)

	require.NoError(t, ch.SendAction(context.Background(), 42, turn.ActionRecordVoice))
	require.NoError(t, ch.SendAction(context.Background(), 42, turn.ActionTyping))
	require.NoError(t, ch.SendAudio(context.Background(), 42, []byte("ID3data"), turn.ReplyAudioName))
	assert.Error(t, ch.SendAudio(context.Background(), 42, nil, turn.ReplyAudioName))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"record_voice", "typing"}, api.actions)
	assert.Equal(t, []string{"reply.mp3:ID3data"}, api.audio)
}

func TestFetchVoice(t *testing.T) {
	ch := newTestChannel(t, &fakeBotAPI{})

	data, err := ch.FetchVoice(context.Background(), bus.VoiceRef{FileID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS-voice-bytes"), data)
}

func TestNewTelegramChannel_InvalidProxy(t *testing.T) {
	_, err := NewTelegramChannel(config.TelegramConfig{Token: testToken, Proxy: "://bad"}, bus.NewMessageBus())
	assert.ErrorContains(t, err, "invalid proxy URL")
}

func TestHandleMessage_PublishesToBus(t *testing.T) {
	ch := newTestChannel(t, &fakeBotAPI{})

	ch.handleMessage(context.Background(), &telego.Message{
		MessageID: 5,
		From:      &telego.User{ID: 7},
		Chat:      telego.Chat{ID: 70, Type: "private"},
		Text:      "How do I treat leaf blight?",
	})
	ch.handleMessage(context.Background(), &telego.Message{Chat: telego.Chat{ID: 70}})

	msg, ok := ch.bus.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.SenderID)
	assert.Equal(t, int64(70), msg.ChatID)
	assert.Equal(t, bus.KindText, msg.Kind)
	assert.Zero(t, ch.bus.Pending())
}
