package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiml096/farmer-bot/pkg/utils"
)

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(10<<20))
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice.wav", header.Filename)
		assert.Equal(t, "RIFF-fake", string(data))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"text":     "  വിളകൾക്ക് വെള്ളം എപ്പോൾ?  ",
			"language": "Malayalam",
			"duration": 2.5,
		})
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("test-key", server.URL, "")
	result, err := tr.Transcribe(context.Background(), []byte("RIFF-fake"), "voice.wav")
	require.NoError(t, err)
	assert.Equal(t, "വിളകൾക്ക് വെള്ളം എപ്പോൾ?", result.Text)
	assert.Equal(t, "ml", result.Language)
	assert.Equal(t, 2.5, result.Duration)
}

func TestWhisperTranscriber_DefaultsLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	result, err := NewWhisperTranscriber("k", server.URL+"/", "whisper-1").Transcribe(context.Background(), []byte("x"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, result.Language)
}

func TestWhisperTranscriber_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid api key"}`))
	}))
	defer server.Close()

	_, err := NewWhisperTranscriber("bad-key", server.URL, "").Transcribe(context.Background(), []byte("x"), "voice.wav")
	var se *utils.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.False(t, utils.ClassifyRetryDecision(err).Retryable)
}

func TestWhisperTranscriber_IsAvailable(t *testing.T) {
	assert.True(t, NewWhisperTranscriber("key", "", "").IsAvailable())
	assert.False(t, NewWhisperTranscriber("", "", "").IsAvailable())
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"":          "en",
		"  ":        "en",
		"English":   "en",
		"malayalam": "ml",
		"ML":        "ml",
		"en":        "en",
		"swahili":   "swahili",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}

func TestGoogleSynthesizer_Synthesize(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "ml", q.Get("tl"))
		assert.Equal(t, "tw-ob", q.Get("client"))
		assert.LessOrEqual(t, len([]rune(q.Get("q"))), googleChunkRunes)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3:" + q.Get("idx") + ";"))
	}))
	defer server.Close()

	s := NewGoogleSynthesizer(server.URL)
	text := strings.Repeat("നെല്ലിന് വെള്ളം നൽകുക. ", 12)

	audio, err := s.Synthesize(context.Background(), text, "ml")
	require.NoError(t, err)
	n := int(calls.Load())
	assert.Greater(t, n, 1)
	assert.True(t, strings.HasPrefix(string(audio), "mp3:0;mp3:1;"))
	assert.Equal(t, n, strings.Count(string(audio), "mp3:"))
}

func TestGoogleSynthesizer_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewGoogleSynthesizer(server.URL)

	_, err := s.Synthesize(context.Background(), "   ", "ml")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = s.Synthesize(context.Background(), "hello", "ml")
	var se *utils.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, utils.ClassifyRetryDecision(err).Retryable)
}

func TestSplitSpeechChunks(t *testing.T) {
	assert.Nil(t, splitSpeechChunks(" \n ", 100))
	assert.Equal(t, []string{"short text"}, splitSpeechChunks("short   text", 100))

	chunks := splitSpeechChunks("one two three. four five six seven", 16)
	assert.Equal(t, []string{"one two three.", "four five six", "seven"}, chunks)

	unbroken := strings.Repeat("ക", 250)
	chunks = splitSpeechChunks(unbroken, 100)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
	assert.Equal(t, unbroken, strings.Join(chunks, ""))
}

func TestSpeechSynthesizer_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/speech":
			var req speechRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "kokoro", req.Model)
			assert.Equal(t, "af_nova", req.Voice)
			assert.Equal(t, "mp3", req.Format)
			assert.Equal(t, "ml", req.Language)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			w.Write([]byte("ID3-audio"))
		case "/v1/models":
			w.Write([]byte(`{"data":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := NewSpeechSynthesizer(server.URL, "secret", "", "")
	audio, err := s.Synthesize(context.Background(), " ഹലോ ", "ml")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
	assert.True(t, s.IsAvailable())

	_, err = s.Synthesize(context.Background(), "", "ml")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSynthesizers_ImplementInterface(t *testing.T) {
	var _ Synthesizer = (*GoogleSynthesizer)(nil)
	var _ Synthesizer = (*SpeechSynthesizer)(nil)
	var _ Transcriber = (*WhisperTranscriber)(nil)
}
