// Package redaction masks credentials before they reach log output.
// Bot tokens and chat-service API keys travel in URLs and headers, so both
// the message text and structured fields are scanned.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	Enabled bool `json:"enabled"`

	// CustomPatterns allows additional regex patterns to redact.
	CustomPatterns []string `json:"custom_patterns"`

	// Replacement is the string used to replace sensitive data.
	Replacement string `json:"replacement"`
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Replacement: "[REDACTED]",
	}
}

type Redactor struct {
	config   Config
	builtin  []*regexp.Regexp
	custom   []*regexp.Regexp
	jsonKeys *regexp.Regexp
	mu       sync.RWMutex
}

var sensitiveKeys = []string{
	"token", "api_key", "apikey", "secret", "password", "authorization", "credential",
}

func NewRedactor(config Config) *Redactor {
	if config.Replacement == "" {
		config.Replacement = "[REDACTED]"
	}

	r := &Redactor{
		config: config,
		builtin: []*regexp.Regexp{
			// Telegram bot token, also when embedded in an API URL path (/bot<token>/...).
			regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`),
			// Groq and OpenAI style keys.
			regexp.MustCompile(`gsk_[A-Za-z0-9]{20,}`),
			regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-\.]{20,}`),
		},
		jsonKeys: regexp.MustCompile(`"(?:api_key|token|secret|password)"\s*:\s*"([^"]+)"`),
	}

	for _, pattern := range config.CustomPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			r.custom = append(r.custom, re)
		}
	}

	return r
}

// Redact applies all configured redaction rules to the input string.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	result := r.jsonKeys.ReplaceAllStringFunc(input, func(match string) string {
		sub := r.jsonKeys.FindStringSubmatch(match)
		if len(sub) > 1 {
			return strings.Replace(match, sub[1], r.config.Replacement, 1)
		}
		return match
	})

	for _, re := range r.builtin {
		result = re.ReplaceAllString(result, r.config.Replacement)
	}
	for _, re := range r.custom {
		result = re.ReplaceAllString(result, r.config.Replacement)
	}

	return result
}

// RedactFields redacts sensitive values in a map. Keys that name a secret are
// replaced wholesale; string values are scanned.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	r.mu.RLock()
	enabled := r.config.Enabled
	replacement := r.config.Replacement
	r.mu.RUnlock()

	if !enabled {
		return fields
	}

	result := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(strings.ToLower(k)) {
			result[k] = replacement
			continue
		}
		switch val := v.(type) {
		case string:
			result[k] = r.Redact(val)
		case error:
			if val != nil {
				result[k] = r.Redact(val.Error())
			} else {
				result[k] = v
			}
		case map[string]any:
			result[k] = r.RedactFields(val)
		default:
			result[k] = v
		}
	}
	return result
}

func isSensitiveKey(key string) bool {
	for _, sk := range sensitiveKeys {
		if strings.Contains(key, sk) {
			return true
		}
	}
	return false
}

// AddSecret registers a literal secret (e.g. the configured bot token) so it
// is masked even if it does not match a builtin pattern.
func (r *Redactor) AddSecret(secret string) {
	if strings.TrimSpace(secret) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = append(r.custom, regexp.MustCompile(regexp.QuoteMeta(secret)))
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

func current() *Redactor {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor
}

// Redact applies redaction using the global redactor.
func Redact(input string) string {
	return current().Redact(input)
}

// RedactFields redacts fields using the global redactor.
func RedactFields(fields map[string]any) map[string]any {
	return current().RedactFields(fields)
}

// AddSecret registers a literal secret with the global redactor.
func AddSecret(secret string) {
	current().AddSecret(secret)
}

// SetGlobalConfig replaces the global redactor.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = NewRedactor(config)
}
