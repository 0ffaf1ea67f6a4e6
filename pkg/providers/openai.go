package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/utils"
)

const (
	defaultModel          = "llama-3.1-8b-instant"
	defaultRequestTimeout = 120 * time.Second
)

// OpenAIProvider calls an OpenAI-compatible chat completions API (Groq by
// default). Retries are left to the caller.
type OpenAIProvider struct {
	apiBase     string
	model       string
	maxTokens   int
	temperature *float64
	httpClient  *http.Client
	client      *openai.Client
}

type Option func(*OpenAIProvider)

func WithModel(model string) Option {
	return func(p *OpenAIProvider) {
		if m := strings.TrimSpace(model); m != "" {
			p.model = m
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(p *OpenAIProvider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(p *OpenAIProvider) {
		if t >= 0 {
			p.temperature = &t
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(p *OpenAIProvider) {
		if timeout > 0 {
			p.httpClient.Timeout = timeout
		}
	}
}

func NewOpenAIProvider(apiKey, apiBase, proxy string, opts ...Option) *OpenAIProvider {
	httpClient := &http.Client{Timeout: defaultRequestTimeout}
	if proxy != "" {
		parsed, err := url.Parse(proxy)
		if err == nil {
			httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
		} else {
			logger.WarnCF("providers", "Invalid proxy URL, ignoring", map[string]any{"error": err.Error()})
		}
	}

	p := &OpenAIProvider{
		apiBase:    strings.TrimRight(apiBase, "/"),
		model:      defaultModel,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(p.apiBase),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(reqOpts...)
	p.client = &client
	return p
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return p.model
}

// Chat sends messages in order and returns the first choice, trimmed.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.apiBase == "" {
		return "", fmt.Errorf("API base not configured")
	}

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: buildChatMessages(messages),
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Opt(int64(p.maxTokens))
	}
	if p.temperature != nil {
		params.Temperature = openai.Opt(*p.temperature)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed: %w", statusErrorFrom(apiErr))
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.DebugCF("providers", "Chat completion received", map[string]any{
		"model":             p.model,
		"messages":          len(messages),
		"finish_reason":     resp.Choices[0].FinishReason,
		"completion_tokens": resp.Usage.CompletionTokens,
		"elapsed_ms":        time.Since(start).Milliseconds(),
	})
	return content, nil
}

func buildChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func statusErrorFrom(apiErr *openai.Error) *utils.StatusError {
	body := strings.TrimSpace(apiErr.Message)
	if body == "" {
		body = apiErr.RawJSON()
	}
	if apiErr.Response != nil {
		return utils.NewStatusError("chat", apiErr.Response, []byte(body))
	}
	return &utils.StatusError{Service: "chat", StatusCode: apiErr.StatusCode, Body: body}
}
