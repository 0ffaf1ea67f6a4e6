package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/utils"
)

// SpeechSynthesizer uses an OpenAI-compatible /v1/audio/speech server
// (Kokoro, OpenAI, openedai-speech).
type SpeechSynthesizer struct {
	apiBase    string
	apiKey     string
	voice      string
	model      string
	httpClient *http.Client
}

type speechRequest struct {
	Model    string `json:"model"`
	Input    string `json:"input"`
	Voice    string `json:"voice"`
	Format   string `json:"response_format,omitempty"`
	Language string `json:"lang_code,omitempty"`
}

// NewSpeechSynthesizer creates a client for apiBase, which defaults to
// "http://localhost:8102".
func NewSpeechSynthesizer(apiBase, apiKey, model, voice string) *SpeechSynthesizer {
	if apiBase == "" {
		apiBase = "http://localhost:8102"
	}
	if model == "" {
		model = "kokoro"
	}
	if voice == "" {
		voice = "af_nova"
	}

	logger.InfoCF("voice", "Creating speech synthesizer", map[string]any{
		"api_base": apiBase,
		"model":    model,
		"voice":    voice,
	})

	return &SpeechSynthesizer{
		apiBase: strings.TrimRight(apiBase, "/"),
		apiKey:  apiKey,
		voice:   voice,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	bodyBytes, err := json.Marshal(speechRequest{
		Model:    s.model,
		Input:    text,
		Voice:    s.voice,
		Format:   "mp3",
		Language: lang,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/v1/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

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

	logger.InfoCF("voice", "Speech synthesized successfully", map[string]any{
		"size_bytes": len(body),
		"voice":      s.voice,
	})
	return body, nil
}

// IsAvailable checks if the speech server is reachable.
func (s *SpeechSynthesizer) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.DebugCF("voice", "Speech server health check failed", map[string]any{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func newSpeechStatusError(resp *http.Response, body []byte) error {
	logger.ErrorCF("voice", "TTS API error", map[string]any{
		"status_code": resp.StatusCode,
		"response":    utils.Truncate(string(body), 200),
	})
	return utils.NewStatusError("speech", resp, body)
}
