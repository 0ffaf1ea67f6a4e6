package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/utils"
)

// DefaultLanguage is reported when the engine does not detect a language.
const DefaultLanguage = "en"

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, fileName string) (*TranscriptionResponse, error)
	IsAvailable() bool
}

type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// WhisperTranscriber talks to any OpenAI-compatible /audio/transcriptions
// endpoint (Groq, OpenAI, local whisper servers).
type WhisperTranscriber struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

func NewWhisperTranscriber(apiKey, apiBase, model string) *WhisperTranscriber {
	if apiBase == "" {
		apiBase = "https://api.groq.com/openai/v1"
	}
	if model == "" {
		model = "whisper-large-v3"
	}
	logger.DebugCF("voice", "Creating whisper transcriber", map[string]any{
		"api_base":    apiBase,
		"model":       model,
		"has_api_key": apiKey != "",
	})

	return &WhisperTranscriber{
		apiKey:  apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, fileName string) (*TranscriptionResponse, error) {
	if fileName == "" {
		fileName = "voice.wav"
	}
	logger.InfoCF("voice", "Starting transcription", map[string]any{
		"file_name":  fileName,
		"size_bytes": len(audio),
		"model":      t.model,
	})

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio content: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("failed to write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := t.apiBase + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.ErrorCF("voice", "Transcription API error", map[string]any{
			"status_code": resp.StatusCode,
			"response":    utils.Truncate(string(body), 200),
		})
		return nil, utils.NewStatusError("transcription", resp, body)
	}

	var result TranscriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	result.Text = strings.TrimSpace(result.Text)
	result.Language = NormalizeLanguage(result.Language)

	logger.InfoCF("voice", "Transcription completed successfully", map[string]any{
		"text_length":           len(result.Text),
		"language":              result.Language,
		"duration_seconds":      result.Duration,
		"transcription_preview": utils.Truncate(result.Text, 50),
	})

	return &result, nil
}

func (t *WhisperTranscriber) IsAvailable() bool {
	return t.apiKey != ""
}

var languageNames = map[string]string{
	"english":   "en",
	"malayalam": "ml",
	"hindi":     "hi",
	"tamil":     "ta",
	"kannada":   "kn",
	"telugu":    "te",
	"bengali":   "bn",
	"marathi":   "mr",
	"gujarati":  "gu",
	"punjabi":   "pa",
	"urdu":      "ur",
	"arabic":    "ar",
}

// NormalizeLanguage maps an engine-reported language to a short lower-case
// tag. Whisper's verbose_json reports full names; other engines report codes.
// Empty input yields DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	if code, ok := languageNames[lang]; ok {
		return code
	}
	return lang
}
