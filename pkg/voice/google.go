package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/aiml096/farmer-bot/pkg/logger"
)

const (
	googleTTSEndpoint = "https://translate.google.com/translate_tts"
	googleChunkRunes  = 100
)

// GoogleSynthesizer uses the public Google Translate TTS endpoint. Long text
// is spoken in chunks whose MP3 frames are concatenated.
type GoogleSynthesizer struct {
	endpoint   string
	httpClient *http.Client
}

func NewGoogleSynthesizer(endpoint string) *GoogleSynthesizer {
	if endpoint == "" {
		endpoint = googleTTSEndpoint
	}
	logger.InfoCF("voice", "Creating Google TTS synthesizer", map[string]any{"endpoint": endpoint})

	return &GoogleSynthesizer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	chunks := splitSpeechChunks(text, googleChunkRunes)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	if lang == "" {
		lang = "ml"
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := s.fetchChunk(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(data)
	}

	logger.InfoCF("voice", "Speech synthesized successfully", map[string]any{
		"chunks":     len(chunks),
		"size_bytes": audio.Len(),
		"lang":       lang,
	})
	return audio.Bytes(), nil
}

func (s *GoogleSynthesizer) fetchChunk(ctx context.Context, chunk, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", lang)
	q.Set("client", "tw-ob")
	q.Set("idx", strconv.Itoa(idx))
	q.Set("total", strconv.Itoa(total))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://translate.google.com/")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newSpeechStatusError(resp, body)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("TTS returned empty audio")
	}
	return body, nil
}

func (s *GoogleSynthesizer) IsAvailable() bool {
	return true
}

// splitSpeechChunks breaks text into pieces of at most limit runes,
// preferring sentence punctuation, then whitespace.
func splitSpeechChunks(text string, limit int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = appendChunk(chunks, runes)
			break
		}
		cut := lastBoundary(runes[:limit], isSpeechPunct)
		if cut <= 0 {
			cut = lastBoundary(runes[:limit], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = appendChunk(chunks, runes[:cut])
		runes = runes[cut:]
	}
	return chunks
}

func appendChunk(chunks []string, r []rune) []string {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}

// lastBoundary returns the index just past the last rune matching fn.
func lastBoundary(r []rune, fn func(rune) bool) int {
	for i := len(r) - 1; i > 0; i-- {
		if fn(r[i]) {
			return i + 1
		}
	}
	return 0
}

func isSpeechPunct(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', ',', '।', '\n':
		return true
	}
	return false
}
